// Package xfault 为缓存引擎提供故障隔离：错误分类、兜底执行、重试、熔断与错误历史。
//
// # 错误分类
//
// [Classify] 依据错误链与消息特征把错误归入五类：
//
//	StorageError        high    不可恢复（容量、配额、缓存已关闭）
//	NetworkError        medium  可恢复（超时、连接失败、context deadline）
//	SerializationError  medium  可恢复（json/marshal/parse）
//	ValidationError     low     可恢复（invalid/empty key/required）
//	UnknownError        medium  可恢复（默认桶）
//
// 经 [Handler] 处理的错误统一包装为 [*Error]，携带操作名、缓存键、时间与每次调用唯一的
// correlation id（UUID）。
//
// # 执行辅助
//
//   - [Execute]：经过熔断器执行一次，失败时记录并返回 *Error
//   - [HandleOperation] / [HandleSyncOperation]：失败时返回调用方提供的兜底值，仍会通知 OnError
//   - [ExecuteWithRetry]：不可恢复错误只调用一次；可恢复错误最多额外重试 MaxRetries 次，
//     启用指数退避时第 n 次重试等待 RetryDelay×n，否则固定 RetryDelay（retry-go）
//
// # 熔断
//
// 熔断器基于 gobreaker 的两段式（TwoStep）实现与滑动窗口计数：窗口内请求数达到
// MinRequests 且失败率达到阈值时打开，Timeout 后进入半开，探测成功即关闭。
// [Handler.ResetStats] 会重建熔断器。
package xfault
