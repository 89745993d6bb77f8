package entities

import (
	"time"
	"video-uploader/constant"
)

// Video is one recorded-and-uploaded video owned by a single user.
type Video struct {
	ID        string               `json:"id" gorm:"type:varchar(64);primary_key"`
	Title     string               `json:"title" gorm:"type:varchar(255);not null"`
	VideoURL  string               `json:"videoURL" gorm:"type:text;not null;default:''"`
	CreatedAt time.Time            `json:"createdAt" gorm:"type:timestamptz;not null;autoCreateTime:false"`
	UserID    string               `json:"userId" gorm:"type:varchar(128);not null;index:idx_videos_user_id"`
	UserEmail string               `json:"userEmail" gorm:"type:varchar(255)"`
	Status    constant.VideoStatus `json:"status" gorm:"type:varchar(32);not null"`
	LocalURL  *string              `json:"localURL,omitempty" gorm:"type:text"`
	Error     *string              `json:"error,omitempty" gorm:"column:error_message;type:text"`
}

func (Video) TableName() string {
	return "videos"
}

// Playable is false for a completed or uploaded record whose upload never produced a URL.
func (v Video) Playable() bool {
	return v.Status.HasRemoteCopy() && v.VideoURL != ""
}

// SameForDisplay compares only the fields that change after creation.
func SameForDisplay(a, b Video) bool {
	return a.ID == b.ID && a.Status == b.Status && a.VideoURL == b.VideoURL
}

func (v Video) ErrorMessage() string {
	if v.Error == nil {
		return ""
	}
	return *v.Error
}
