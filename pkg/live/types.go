package live

// MessageType is the first byte of every binary frame.
type MessageType uint8

const (
	// FrameEvent carries a pointer event from the page.
	FrameEvent MessageType = 0x01
	// FrameControl carries a named control message (HELLO, PING, PONG).
	FrameControl MessageType = 0x02
)

// Control message names.
const (
	ControlHello = "HELLO"
	ControlPing  = "PING"
	ControlPong  = "PONG"
)

// coordScale is the fixed-point scale of encoded coordinates: values travel
// as hundredths of a pixel.
const coordScale = 100

// maxString bounds decoded string lengths.
const maxString = 4096

// Entity is one row of the page's entities list.
type Entity struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Confidence string `json:"confidence,omitempty"`
}

// EntitiesMessage is the text message listing the visible entities in
// frame order. The page tells it from SVG markup by its leading brace.
type EntitiesMessage struct {
	Type     string   `json:"type"`
	Entities []Entity `json:"entities"`
}
