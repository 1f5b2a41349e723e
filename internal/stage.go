package internal

// Stage 文件所处的生命周期阶段
type Stage int

const (
	Downloads Stage = iota
	Archive
	Purge
)

// Stages 按流水线顺序排列的全部阶段
var Stages = []Stage{Downloads, Archive, Purge}

// TrackedStages 需要记录进入时间的阶段
var TrackedStages = []Stage{Archive, Purge}

type stagePolicy struct {
	name         string
	thresholdKey string
	dirsKey      string
}

var policies = map[Stage]stagePolicy{
	Downloads: {"downloads", KeyDownloadStaleAfter, KeyDownloadDirectories},
	Archive:   {"archive", KeyArchiveStaleAfter, KeyArchiveDirectories},
	Purge:     {"purge", KeyPurgeStaleAfter, KeyPurgeDirectories},
}

// Policy 返回阶段对应的过期阈值键和目录列表键
func Policy(s Stage) (thresholdKey, directoriesKey string) {
	p := policies[s]
	return p.thresholdKey, p.dirsKey
}

func (s Stage) String() string {
	if p, ok := policies[s]; ok {
		return p.name
	}
	return "unknown"
}

// Tracked 该阶段的文件年龄是否来自记录文件而非文件系统
func (s Stage) Tracked() bool {
	return s == Archive || s == Purge
}

// ParseStage 将名称解析为阶段
func ParseStage(name string) (Stage, bool) {
	for _, s := range Stages {
		if s.String() == name {
			return s, true
		}
	}
	return 0, false
}
