package domain

// PublicationState is derived from is_published and scheduled_publish_at.
type PublicationState string

const (
	StateDraft     PublicationState = "draft"
	StateScheduled PublicationState = "scheduled"
	StatePublished PublicationState = "published"
)

// PublicationOp names a transition request.
type PublicationOp string

const (
	OpPublish        PublicationOp = "publish"
	OpUnpublish      PublicationOp = "unpublish"
	OpSchedule       PublicationOp = "schedule"
	OpCancelSchedule PublicationOp = "cancel_schedule"
	OpSetVisibility  PublicationOp = "set_visibility"
)

// Transition reports the state an op leads to from the given state.
// ok is false when the op is not allowed; noop is true when the course
// is already in the target state.
func Transition(from PublicationState, op PublicationOp) (to PublicationState, noop bool, ok bool) {
	switch op {
	case OpPublish:
		if from == StatePublished {
			return from, true, true
		}
		return StatePublished, false, true
	case OpUnpublish:
		if from == StatePublished {
			return StateDraft, false, true
		}
		return from, true, from == StateDraft
	case OpSchedule:
		if from == StatePublished {
			return from, false, false
		}
		return StateScheduled, false, true
	case OpCancelSchedule:
		if from == StateScheduled {
			return StateDraft, false, true
		}
		return from, true, from == StateDraft
	case OpSetVisibility:
		return from, false, true
	}
	return from, false, false
}
