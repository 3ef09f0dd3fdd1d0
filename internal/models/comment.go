// internal/models/comment.go
package models

import "time"

type Comment struct {
	ID                   string     `json:"id"`
	ApplicationID        string     `json:"applicationId"`
	AuthorID             string     `json:"authorId"`
	Content              string     `json:"content"`
	IsPrivate            bool       `json:"isPrivate"`
	IsInformationRequest bool       `json:"isInformationRequest"`
	ParentCommentID      *string    `json:"parentCommentId,omitempty"`
	HasResponse          bool       `json:"hasResponse"`
	IsEdited             bool       `json:"isEdited"`
	IsDeleted            bool       `json:"isDeleted"`
	CreatedAt            time.Time  `json:"createdAt"`
	ModifiedAt           *time.Time `json:"modifiedAt,omitempty"`
}

func (c *Comment) Clone() *Comment {
	if c == nil {
		return nil
	}
	out := *c
	out.ParentCommentID = cloneString(c.ParentCommentID)
	out.ModifiedAt = CloneTimePtr(c.ModifiedAt)
	return &out
}
