// Package mover 在阶段目录之间移动或复制文件
package mover

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/djherbis/times"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/brandonio21/download-sweeper/pkg/hasher"
	"github.com/brandonio21/download-sweeper/pkg/logger"
)

// ErrChecksumMismatch 复制后的文件与源文件内容不一致
var ErrChecksumMismatch = errors.New("复制后校验失败")

// 生成唯一文件名的最大尝试次数
const maxNameAttempts = 10

// Mover 文件移动器
type Mover struct {
	fs afero.Fs
}

// New 创建文件移动器
func New(fs afero.Fs) *Mover {
	return &Mover{fs: fs}
}

// Move 将文件移动到 dstDir 下，返回新路径
// 优先使用 rename，失败时（如跨设备）改为复制、校验后删除源文件
func (m *Mover) Move(src, dstDir string) (string, error) {
	info, err := m.fs.Stat(src)
	if err != nil {
		return "", fmt.Errorf("读取源文件信息失败: %w", err)
	}

	if err := m.fs.MkdirAll(dstDir, 0755); err != nil {
		return "", fmt.Errorf("创建目标目录失败: %w", err)
	}

	dst, err := m.uniquePath(dstDir, filepath.Base(src))
	if err != nil {
		return "", err
	}

	err = m.fs.Rename(src, dst)
	if err == nil {
		return dst, nil
	}
	logger.Get().Debug().
		Err(err).
		Str("source", src).
		Str("destination", dst).
		Msg("直接重命名失败，尝试复制后删除")

	if err := m.copyVerified(src, dst, info); err != nil {
		return "", err
	}

	if err := m.fs.Remove(src); err != nil {
		// 源文件删不掉时撤销复制，保持文件原样
		_ = m.fs.Remove(dst)
		return "", fmt.Errorf("删除源文件失败: %w", err)
	}

	return dst, nil
}

// Copy 将文件复制到 dstDir 下，源文件保持不变，返回新路径
func (m *Mover) Copy(src, dstDir string) (string, error) {
	info, err := m.fs.Stat(src)
	if err != nil {
		return "", fmt.Errorf("读取源文件信息失败: %w", err)
	}

	if err := m.fs.MkdirAll(dstDir, 0755); err != nil {
		return "", fmt.Errorf("创建目标目录失败: %w", err)
	}

	dst, err := m.uniquePath(dstDir, filepath.Base(src))
	if err != nil {
		return "", err
	}

	if err := m.copyVerified(src, dst, info); err != nil {
		return "", err
	}
	return dst, nil
}

// copyVerified 先写入目标目录下的临时文件，校验哈希后再重命名为 dst
func (m *Mover) copyVerified(src, dst string, info os.FileInfo) error {
	in, err := m.fs.Open(src)
	if err != nil {
		return fmt.Errorf("打开源文件失败: %w", err)
	}
	defer in.Close()

	tmp, err := afero.TempFile(m.fs, filepath.Dir(dst), "."+filepath.Base(dst)+".*.part")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()

	done := false
	defer func() {
		if !done {
			_ = tmp.Close()
			_ = m.fs.Remove(tmpName)
		}
	}()

	srcHash := xxhash.New()
	if _, err := io.Copy(tmp, io.TeeReader(in, srcHash)); err != nil {
		return fmt.Errorf("复制文件内容失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("同步临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}

	dstSum, err := hasher.CalculateHash(m.fs, tmpName)
	if err != nil {
		return err
	}
	if dstSum != srcHash.Sum64() {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, src)
	}

	if err := m.fs.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("重命名临时文件失败: %w", err)
	}
	done = true

	m.preserveMetadata(dst, info)
	return nil
}

// preserveMetadata 尽量保留权限、时间和属主，失败只记录日志
func (m *Mover) preserveMetadata(dst string, info os.FileInfo) {
	if err := m.fs.Chmod(dst, info.Mode().Perm()); err != nil {
		logger.Get().Debug().Err(err).Str("path", dst).Msg("保留文件权限失败")
	}

	atime := info.ModTime()
	if info.Sys() != nil {
		atime = times.Get(info).AccessTime()
	}
	if err := m.fs.Chtimes(dst, atime, info.ModTime()); err != nil {
		logger.Get().Debug().Err(err).Str("path", dst).Msg("保留文件时间失败")
	}

	if uid, gid, ok := ownerOf(info); ok {
		if err := m.fs.Chown(dst, uid, gid); err != nil {
			logger.Get().Debug().Err(err).Str("path", dst).Msg("保留文件属主失败")
		}
	}
}

// uniquePath 返回 dir 下不冲突的文件路径，同名文件已存在时添加随机前缀
func (m *Mover) uniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	for i := 0; i < maxNameAttempts; i++ {
		exists, err := afero.Exists(m.fs, candidate)
		if err != nil {
			return "", fmt.Errorf("检查文件是否存在失败: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		renamed := uuid.NewString()[:8] + "_" + name
		logger.Get().Debug().
			Str("original_path", candidate).
			Str("new_name", renamed).
			Msg("文件名冲突，自动重命名")
		candidate = filepath.Join(dir, renamed)
	}
	return "", fmt.Errorf("无法生成唯一文件名，已尝试 %d 次: %s", maxNameAttempts, name)
}

// UniquePath 返回 dir 下不与现有文件冲突的路径
func UniquePath(fs afero.Fs, dir, name string) (string, error) {
	return New(fs).uniquePath(dir, name)
}
