package transcript

// Wire-level discriminators used by the conversational agent's side channel.
// Anything else on the channel (metrics, error reports) is not a transcript
// message and is ignored by the decoder.
const (
	objectUserTranscription  = "user.transcription"
	objectAgentTranscription = "assistant.transcription"
)

type Kind string

const (
	KindUser  Kind = "user"
	KindAgent Kind = "agent"
)

type TurnStatus string

const (
	TurnInProgress  TurnStatus = "in_progress"
	TurnEnd         TurnStatus = "end"
	TurnInterrupted TurnStatus = "interrupted"
)

// Agent records carry an explicit integer status on the wire. User records
// only signal finality via a boolean flag.
const (
	wireStatusInProgress  = 0
	wireStatusEnd         = 1
	wireStatusInterrupted = 2
)

// Record is a single decoded transcript update. Records are transient: they
// are folded into a Turn immediately and never stored.
type Record struct {
	Kind    Kind
	UID     string
	TurnID  int
	Text    string
	StartMs int64
	Status  TurnStatus
}
