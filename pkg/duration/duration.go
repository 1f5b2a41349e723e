// Package duration 解析配置中的过期阈值，如 "30d"、"2w"
package duration

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

var (
	// ErrInvalidFormat 字符串不是 "数字+单位" 的形式
	ErrInvalidFormat = errors.New("无效的时间格式")

	// ErrInvalidUnit 单位字母无法识别，同时也属于 ErrInvalidFormat
	ErrInvalidUnit = fmt.Errorf("%w: 无效的时间单位", ErrInvalidFormat)
)

const day = 24 * time.Hour

var (
	pattern = regexp.MustCompile(`^(\d+)([a-z])$`)

	units = map[string]time.Duration{
		"d": day,
		"w": 7 * day,
	}
)

// Parse 将 "30d"、"2w" 形式的字符串解析为 time.Duration
func Parse(spec string) (time.Duration, error) {
	m := pattern.FindStringSubmatch(spec)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, spec)
	}

	unit, ok := units[m[2]]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUnit, spec)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n > int64(math.MaxInt64/unit) {
		return 0, fmt.Errorf("%w: %q 超出范围", ErrInvalidFormat, spec)
	}

	return time.Duration(n) * unit, nil
}
