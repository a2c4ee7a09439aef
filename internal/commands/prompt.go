package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/blist-xyz/review-service/pkg/util"
)

// promptReason asks the invoking staff member for a reason, offering the
// canned list by index. Free text is accepted as-is. A timeout or an explicit
// "cancel" aborts the command before anything is mutated.
func (r *Registry) promptReason(ctx context.Context, inv *Invocation, title string, canned []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** Reply with a number, free text, or `cancel`.\n", title)
	for i, reason := range canned {
		fmt.Fprintf(&b, "`%d` %s\n", i+1, reason)
	}
	if err := inv.Reply(ctx, b.String()); err != nil {
		return "", util.NewInternalError(err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.Review.PromptTimeout())
	defer cancel()

	reply, err := r.chat.AwaitReply(waitCtx, inv.ChannelID, inv.Author.ID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", util.NewAborted("Timed out waiting for a reason; nothing was changed.")
		}
		return "", util.NewInternalError(err)
	}

	reply = strings.TrimSpace(reply)
	if strings.EqualFold(reply, "cancel") {
		return "", util.NewAborted("Cancelled; nothing was changed.")
	}
	if index, convErr := strconv.Atoi(reply); convErr == nil {
		if index < 1 || index > len(canned) {
			return "", util.NewValidationError(
				fmt.Sprintf("Pick a number between 1 and %d, or type the reason out.", len(canned)), nil)
		}
		return canned[index-1], nil
	}
	return reply, nil
}
