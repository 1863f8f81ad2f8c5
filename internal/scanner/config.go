package scanner

// S3Config holds the S3/MinIO connection settings shared by every S3
// scanner in a process.
type S3Config struct {
	// Endpoint is the S3 endpoint URL (e.g., "http://localhost:9000" for MinIO).
	// Empty means the AWS default resolver.
	Endpoint string `env:"ENDPOINT"`

	// Region is the AWS region
	Region string `env:"REGION" envDefault:"us-east-1"`

	// AccessKeyID is the AWS access key ID
	AccessKeyID string `env:"ACCESS_KEY_ID"`

	// SecretAccessKey is the AWS secret access key
	SecretAccessKey string `env:"SECRET_ACCESS_KEY"`

	// UsePathStyle enables path-style addressing (required for MinIO)
	UsePathStyle bool `env:"USE_PATH_STYLE" envDefault:"false"`
}

// S3Source names the objects one poller watches.
type S3Source struct {
	// Bucket is the S3 bucket name
	Bucket string `yaml:"bucket"`

	// Prefix restricts the listing to keys under this prefix
	Prefix string `yaml:"prefix"`

	// Suffix keeps only keys ending with this suffix (e.g. ".csv")
	Suffix string `yaml:"suffix"`
}
