package messagebus

import "errors"

var (
	// ErrAlreadyGenerating is returned when a create-patch for a message
	// that would start out generating (an unfinished assistant message)
	// arrives while another message is still generating — only one
	// message may be generating at a time.
	ErrAlreadyGenerating = errors.New("messagebus: a message is already generating")

	// ErrRoleRequired is returned when a create-patch omits Role.
	ErrRoleRequired = errors.New("messagebus: role is required to create a message")

	// ErrMessageNotFound is returned when a patch targets an unknown
	// message id.
	ErrMessageNotFound = errors.New("messagebus: message not found")
)
