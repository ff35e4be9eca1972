// Package resilience 提供容错相关的子包。
//
// 子包列表：
//   - xfault: 错误分类、降级、重试与熔断
package resilience
