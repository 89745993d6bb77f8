package constant

type VideoStatus string

const (
	VideoStatusPending          VideoStatus = "pending"
	VideoStatusUploading        VideoStatus = "uploading"
	VideoStatusUploaded         VideoStatus = "uploaded"
	VideoStatusCompleted        VideoStatus = "completed"
	VideoStatusFailed           VideoStatus = "failed"
	VideoStatusProcessedByThunk VideoStatus = "processedByThunk"
)

func (s VideoStatus) String() string {
	return string(s)
}

// HasRemoteCopy reports whether the bytes are expected to exist in the object store.
func (s VideoStatus) HasRemoteCopy() bool {
	switch s {
	case VideoStatusUploaded, VideoStatusCompleted, VideoStatusProcessedByThunk:
		return true
	}
	return false
}

type ChangeType string

const (
	ChangeTypeAdded    ChangeType = "added"
	ChangeTypeModified ChangeType = "modified"
	ChangeTypeRemoved  ChangeType = "removed"
)

type StorageDriver string

const (
	StorageDriverMinio StorageDriver = "minio"
	StorageDriverS3    StorageDriver = "s3"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
