package consts

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	//  Programs
	SystemProgramStr          = "11111111111111111111111111111111"
	TokenProgramStr           = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	TokenProgram2022Str       = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	AssociatedTokenProgramStr = "ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL"
	StakeProgramStr           = "Stake11111111111111111111111111111111111111"
	ComputeBudgetProgramStr   = "ComputeBudget111111111111111111111111111111"

	// 原生 SOL 的 wrapped mint：符号解析的最高优先级短路项
	WSOLMintStr = "So11111111111111111111111111111111111111112"

	// 稳定报价币
	USDCMintStr = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDTMintStr = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
)

const (
	// NativeSymbol 是原生币的规范符号；解析结果等于它但 mint 不是 WSOL 时必须降级。
	NativeSymbol = "SOL"

	// NativeDecimals 是原生币的固定精度（lamports → SOL）。
	NativeDecimals = 9
)
