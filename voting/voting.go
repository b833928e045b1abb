// Package voting validates and applies vote submissions against a poll's
// configured constraints.
package voting

import (
	"errors"

	"github.com/openpolls/api.openpolls.dev/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNoSelection is returned when the submission carries no choice ids.
	ErrNoSelection = errors.New("no choices selected")
	// ErrUnknownChoice is returned when any submitted id does not resolve
	// against the poll's choices. Nothing is applied.
	ErrUnknownChoice = errors.New("choice not found")
	// ErrMultipleNotAllowed is returned when more than one choice is
	// submitted to a single-choice poll.
	ErrMultipleNotAllowed = errors.New("poll does not allow multiple choices")
	// ErrAlreadyVoted is returned when ipChecking is on and the caller's IP
	// already appears among any choice's voters.
	ErrAlreadyVoted = errors.New("ip has already voted on this poll")
)

// Apply validates a submission against the poll and, only if every check
// passes, appends one voter record per selected choice. The poll is mutated
// in place; the caller persists it. Duplicate ids in one submission each
// append their own record.
func Apply(poll *model.Poll, choiceIDs []string, ip string, voter *primitive.ObjectID) error {
	if len(choiceIDs) == 0 {
		return ErrNoSelection
	}

	// Resolve everything before touching anything, a single bad id rejects
	// the whole submission.
	selected := make([]*model.Choice, 0, len(choiceIDs))
	for _, raw := range choiceIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			return ErrUnknownChoice
		}
		choice := poll.Choice(id)
		if choice == nil {
			return ErrUnknownChoice
		}
		selected = append(selected, choice)
	}

	if len(selected) > 1 && !poll.Options.Multiple {
		return ErrMultipleNotAllowed
	}

	if poll.Options.IPChecking {
		// The scan covers every choice, not just the selected ones.
		for i := range poll.Choices {
			for _, v := range poll.Choices[i].Voters {
				if v.IP == ip {
					return ErrAlreadyVoted
				}
			}
		}
	}

	for _, choice := range selected {
		choice.Voters = append(choice.Voters, model.Voter{IP: ip, Voter: voter})
	}
	return nil
}
