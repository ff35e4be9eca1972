// Package xdepgraph 维护缓存 key 之间的依赖关系，用于级联失效。
//
// 边 A → B 表示 "A 依赖 B"：B 失效时 A 也必须失效。
// 添加会形成环的边会被拒绝，因此图始终是有向无环图。
//
//	g := xdepgraph.New()
//	_ = g.AddDependency("page:home", "user:1")
//	_ = g.AddDependency("feed:1", "page:home")
//
//	// 删除 user:1、page:home、feed:1（依赖先于依赖者）
//	n, err := g.Cascade(ctx, cache, "user:1")
package xdepgraph
