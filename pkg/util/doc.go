// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xlru: 基于数组节点的访问顺序链表，O(1) 移动到队尾
//   - xcron: 进程内定时任务调度，基于 robfig/cron
package util
