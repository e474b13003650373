package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

// QuestionPageSize is the fixed page size of question listings.
const QuestionPageSize = 20

// MaxPage bounds every paginated listing.
const MaxPage = 10000

var AllowedImageExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)
