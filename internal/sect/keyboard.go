package sect

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v3"
)

// Callback data prefixes
const (
	CallbackApprove = "sect_approve:" // sect_approve:<player_id>
	CallbackReject  = "sect_reject:"  // sect_reject:<player_id>
)

// BuildApplicationPanel creates the approve/reject buttons under a join
// request.
func BuildApplicationPanel(applicantID int64) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	id := strconv.FormatInt(applicantID, 10)
	markup.Inline(markup.Row(
		markup.Data("✅ 准许入门", CallbackApprove+id),
		markup.Data("❌ 拒绝", CallbackReject+id),
	))
	return markup
}

// ParseCallback splits callback data into its prefix and applicant id.
func ParseCallback(data string) (prefix string, applicantID int64, err error) {
	for _, p := range []string{CallbackApprove, CallbackReject} {
		if rest, ok := strings.CutPrefix(data, p); ok {
			id, err := strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return "", 0, fmt.Errorf("invalid applicant id %q: %w", rest, err)
			}
			return p, id, nil
		}
	}
	return "", 0, fmt.Errorf("unknown sect callback %q", data)
}
