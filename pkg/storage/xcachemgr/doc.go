// Package xcachemgr 按 feature 名管理相互隔离的缓存实例。
//
// 每个 feature 首次 GetCache 时惰性创建一个 xcache.Provider，之后复用同一实例，
// 直到 Manager 关闭。配置按字段合并：xcache.DefaultConfig() < 管理器默认覆盖 < feature 覆盖。
//
//	mgr := xcachemgr.New(
//		xcachemgr.WithDefaults(xcache.ConfigPatch{DefaultTTL: xcache.Ptr(time.Minute)}),
//		xcachemgr.WithFeature("auth", xcache.ConfigPatch{MaxSize: xcache.Ptr(100)}),
//	)
//	defer mgr.Close()
//
//	auth, _ := mgr.GetCache("auth")
//	_ = auth.Set(ctx, "token:1", token)
//
// Manager 不是包级单例，由组合根（例如 cmd/xcachectl）创建并持有。
package xcachemgr
