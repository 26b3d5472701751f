package approval

import (
	"strings"

	errors "github.com/frahmantamala/research-hours/internal"
	"github.com/frahmantamala/research-hours/internal/audit"
	"github.com/frahmantamala/research-hours/internal/record"
)

// CommentDTO carries the reviewer's reason for reject and reopen.
type CommentDTO struct {
	Comment string `json:"comment"`
}

func (dto CommentDTO) Validate() error {
	if strings.TrimSpace(dto.Comment) == "" {
		return errors.ErrCommentRequired
	}
	return nil
}

type PendingResponse struct {
	Records []*record.Record `json:"records"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

type HistoryResponse struct {
	RecordID int64          `json:"record_id"`
	Entries  []*audit.Entry `json:"entries"`
}
