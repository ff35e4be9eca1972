package xcache

import "errors"

// =============================================================================
// 通用错误
// =============================================================================

var (
	// ErrEmptyKey 表示传入的 key 为空字符串。
	ErrEmptyKey = errors.New("xcache: empty key")

	// ErrClosed 表示缓存已关闭。
	ErrClosed = errors.New("xcache: cache closed")

	// ErrInvalidConfig 表示配置参数无效。
	ErrInvalidConfig = errors.New("xcache: invalid configuration")

	// ErrInvalidPattern 表示失效模式无效（零值 Pattern 或 nil 正则）。
	ErrInvalidPattern = errors.New("xcache: invalid pattern")
)

// =============================================================================
// Cleanup 相关错误
// =============================================================================

var (
	// ErrNilSweeper 表示 CleanupManager.Start 收到 nil Sweeper。
	ErrNilSweeper = errors.New("xcache: nil sweeper")

	// ErrCleanupRunning 表示清理循环已在运行。
	ErrCleanupRunning = errors.New("xcache: cleanup already running")
)

// =============================================================================
// Loader 相关错误
// =============================================================================

var (
	// ErrNilCache 表示 Loader 的缓存为 nil。
	ErrNilCache = errors.New("xcache: nil cache")

	// ErrNilLoader 表示 loader 函数为 nil。
	ErrNilLoader = errors.New("xcache: nil loader function")

	// ErrLoadPanic 表示 loadFn（用户提供的回源函数）发生了 panic。
	// singleflight DoChan 模式下 panic 会在新 goroutine 中重新抛出并导致进程崩溃，
	// 因此在 loadFn 外层 recover 并转为此错误。
	ErrLoadPanic = errors.New("xcache: load function panicked")
)
