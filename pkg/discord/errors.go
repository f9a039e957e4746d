package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/txn2/plotwatch/pkg/pagination"
)

// classify maps Discord REST errors onto the pagination sentinels so callers
// can tell an unreachable message from a transient failure.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
			return fmt.Errorf("%s: %w: %w", op, pagination.ErrMessageNotFound, err)
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return fmt.Errorf("%s: %w: %w", op, pagination.ErrForbidden, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
