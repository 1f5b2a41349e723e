// Package lock 保证同一时间只有一个清理进程读写记录文件
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked 另一个清理进程正在运行
var ErrLocked = errors.New("另一个清理进程正在运行")

// Lock 基于 flock(2) 的 PID 文件锁，文件描述符保持打开期间锁一直有效
type Lock struct {
	path string
	f    *os.File
}

// Acquire 以非阻塞方式获取 path 上的排他锁并写入当前 PID
func Acquire(path string) (*Lock, error) {
	if path == "" {
		return nil, errors.New("锁文件路径为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("创建锁目录失败: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开锁文件失败: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			if pid, ok := Holder(path); ok {
				return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
			}
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("获取锁失败: %w", err)
	}

	l := &Lock{path: path, f: f}
	if err := l.writePID(); err != nil {
		_ = l.Release()
		return nil, err
	}
	return l, nil
}

func (l *Lock) writePID() error {
	if err := l.f.Truncate(0); err != nil {
		return fmt.Errorf("清空锁文件失败: %w", err)
	}
	if _, err := l.f.Seek(0, 0); err != nil {
		return fmt.Errorf("定位锁文件失败: %w", err)
	}
	if _, err := fmt.Fprintf(l.f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("写入 PID 失败: %w", err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("同步锁文件失败: %w", err)
	}
	return nil
}

// Path 返回锁文件路径
func (l *Lock) Path() string { return l.path }

// Release 释放锁，可以重复调用
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}

// Holder 读取锁文件中记录的 PID
func Holder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
