package mixer

import "errors"

var (
	// ErrInvalidArgument 音量越界、未知过渡名称等调用方错误，拒绝时不修改任何状态
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound 未知的频道或声音
	ErrNotFound = errors.New("not found")
	// ErrPersistence 设置保存失败，内存中的状态仍然有效
	ErrPersistence = errors.New("persistence failure")
	ErrClosed      = errors.New("mixer closed")
)
