package xcachemgr

import "errors"

var (
	// ErrClosed 表示管理器已关闭
	ErrClosed = errors.New("xcachemgr: manager closed")

	// ErrEmptyFeature 表示 feature 名为空
	ErrEmptyFeature = errors.New("xcachemgr: empty feature name")
)
