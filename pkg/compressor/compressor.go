// Package compressor 将归档阶段中的普通文件压缩为 zip
package compressor

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/h2non/filetype/types"
	"github.com/klauspost/compress/zip"
	"github.com/spf13/afero"

	"github.com/brandonio21/download-sweeper/pkg/logger"
	"github.com/brandonio21/download-sweeper/pkg/mover"
)

// 文件类型检测所需的文件头部大小（字节）
const headerSize = 262

// 视为已压缩的容器类型
var compressedTypes = []types.Type{
	matchers.TypeZip,
	matchers.TypeTar,
	matchers.TypeRar,
	matchers.TypeGz,
	matchers.TypeBz2,
	matchers.Type7z,
	matchers.TypeXz,
	matchers.TypeZstd,
	matchers.TypeLz,
	matchers.TypeZ,
	matchers.TypeCab,
}

var compressedExts = map[string]bool{"tgz": true}

func init() {
	for _, t := range compressedTypes {
		compressedExts[strings.ToLower(t.Extension)] = true
	}
}

// Compressor zip 压缩器
type Compressor struct {
	fs afero.Fs
}

// New 创建压缩器
func New(fs afero.Fs) *Compressor {
	return &Compressor{fs: fs}
}

// IsArchive 判断文件是否已经是压缩包
// 先按扩展名判断，再读取文件头部识别内容
func (c *Compressor) IsArchive(path string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	if compressedExts[ext] {
		return true
	}

	head, err := c.readHeader(path)
	if err != nil || len(head) == 0 {
		return false
	}

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown {
		return false
	}
	for _, t := range compressedTypes {
		if kind == t {
			logger.Get().Debug().Str("path", path).Str("type", kind.Extension).Msg("文件内容已是压缩格式")
			return true
		}
	}
	return false
}

func (c *Compressor) readHeader(path string) ([]byte, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return head[:n], nil
}

// Compress 在原文件旁生成 <name>.zip，返回压缩包路径
// 原文件保持不变，由调用方决定何时删除
func (c *Compressor) Compress(path string) (string, error) {
	info, err := c.fs.Stat(path)
	if err != nil {
		return "", fmt.Errorf("读取文件信息失败: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("不能压缩目录: %s", path)
	}

	dir := filepath.Dir(path)
	zipPath, err := mover.UniquePath(c.fs, dir, filepath.Base(path)+".zip")
	if err != nil {
		return "", err
	}

	src, err := c.fs.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开文件失败: %w", err)
	}
	defer src.Close()

	tmp, err := afero.TempFile(c.fs, dir, "."+filepath.Base(zipPath)+".*.part")
	if err != nil {
		return "", fmt.Errorf("创建临时压缩文件失败: %w", err)
	}
	tmpName := tmp.Name()

	done := false
	defer func() {
		if !done {
			_ = tmp.Close()
			_ = c.fs.Remove(tmpName)
		}
	}()

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return "", fmt.Errorf("创建压缩头失败: %w", err)
	}
	header.Name = filepath.Base(path)
	header.Method = zip.Deflate

	zw := zip.NewWriter(tmp)
	w, err := zw.CreateHeader(header)
	if err != nil {
		return "", fmt.Errorf("写入压缩头失败: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return "", fmt.Errorf("压缩文件内容失败: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("完成压缩失败: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("同步压缩文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("关闭压缩文件失败: %w", err)
	}
	if err := c.fs.Rename(tmpName, zipPath); err != nil {
		return "", fmt.Errorf("重命名压缩文件失败: %w", err)
	}
	done = true

	logger.Get().Debug().Str("path", path).Str("zip", zipPath).Msg("文件压缩完成")
	return zipPath, nil
}
