// Package xlru 提供 O(1) 的访问顺序表（access order），供 LRU 淘汰策略使用。
//
// Order 只记录"键的访问先后"，不保存值、不做容量控制：
// 是否淘汰、淘汰后如何处理由上层（xcache.LRUStrategy）决定。
//
// # 数据结构
//
// 双向链表以 arena（节点切片 + int32 下标）实现，键到节点下标的索引为哈希表：
//   - Touch：移动到尾部（最近使用），O(1)
//   - Remove：摘除节点并回收到空闲链，O(1)
//   - Oldest：返回头部（最久未使用），O(1)
//
// 节点之间以下标互链而非指针，不存在指针环，被删除的槽位经空闲链复用。
//
// # 并发
//
// 所有方法并发安全（内部互斥锁）。
package xlru
