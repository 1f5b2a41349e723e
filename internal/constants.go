package internal

const (
	// 配置文件默认路径
	DefaultConfigPath = "~/.config/download-sweeper/config.yaml"

	// 记录文件默认路径
	DefaultRecordsPath = "~/.config/download-sweeper/records.yaml"

	// 锁文件默认名称（与记录文件同目录）
	DefaultLockName = "records.lock"

	// 目录并发扫描的默认工作协程数
	DefaultScanWorkers = 4

	// 记录文件中的时间格式（星期 月 日 时:分:秒 年）
	TimestampLayout = "Mon Jan _2 15:04:05 2006"
)

// 配置项键名
const (
	KeyArchiveDownloads     = "archive_downloads"
	KeyPurgeArchives        = "purge_archives"
	KeyCompressArchives     = "compress_archives"
	KeyDeleteFromPurge      = "delete_from_purge"
	KeyMoveToAllArchiveDirs = "move_to_all_archive_dirs"
	KeyMoveToAllPurgeDirs   = "move_to_all_purge_dirs"

	KeyDownloadStaleAfter = "download_stale_after"
	KeyArchiveStaleAfter  = "archive_stale_after"
	KeyPurgeStaleAfter    = "purge_stale_after"

	KeyDownloadDirectories = "download_directories"
	KeyArchiveDirectories  = "archive_directories"
	KeyPurgeDirectories    = "purge_directories"
	KeyBlacklistedPaths    = "blacklisted_paths"

	KeyRecords         = "records"
	KeyLockPath        = "lock_path"
	KeyJournalPath     = "journal_path"
	KeyMetricsTextfile = "metrics_textfile"
	KeyScanWorkers     = "scan_workers"
	KeyLogLevel        = "log_level"
	KeyLogFile         = "log_file"
)
