package hasher

import (
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"

	"github.com/brandonio21/download-sweeper/pkg/logger"
)

// CalculateHash 计算文件内容的 xxHash64，用于校验复制结果
func CalculateHash(fs afero.Fs, filePath string) (uint64, error) {
	file, err := fs.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, file); err != nil {
		return 0, fmt.Errorf("计算哈希失败: %w", err)
	}

	sum := h.Sum64()
	logger.Get().Trace().Msgf("文件哈希计算完成: %s -> %016x", filePath, sum)
	return sum, nil
}

// Format 将哈希值格式化为固定长度的十六进制字符串
func Format(sum uint64) string {
	return fmt.Sprintf("%016x", sum)
}
