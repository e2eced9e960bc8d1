package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one S2 frame as seen on the wire.
type Record struct {
	Seq         uint64    `cbor:"1,keyasint"`
	Timestamp   time.Time `cbor:"2,keyasint"`
	Direction   string    `cbor:"3,keyasint"`
	MessageType string    `cbor:"4,keyasint,omitempty"`
	Frame       []byte    `cbor:"5,keyasint"`
}

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("trace: cbor encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("trace: cbor decoder mode: %v", err))
	}
}

var ErrClosed = errors.New("trace: recorder closed")

// Recorder appends records to a CBOR sequence. It is safe for concurrent use.
type Recorder struct {
	lock    sync.Mutex
	w       io.Writer
	closer  io.Closer
	encoder *cbor.Encoder
	seq     uint64
	closed  bool
}

func NewRecorder(w io.Writer) *Recorder {
	r := &Recorder{
		w:       w,
		encoder: encMode.NewEncoder(w),
	}
	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}
	return r
}

// OpenFile appends to path, creating it if needed.
func OpenFile(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return NewRecorder(f), nil
}

func (r *Recorder) Record(at time.Time, direction string, frame []byte) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.seq++
	return r.encoder.Encode(Record{
		Seq:         r.seq,
		Timestamp:   at,
		Direction:   direction,
		MessageType: peekMessageType(frame),
		Frame:       frame,
	})
}

// Count is the number of records written by this recorder.
func (r *Recorder) Count() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.seq
}

func (r *Recorder) Sync() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if f, ok := r.w.(*os.File); ok && !r.closed {
		return f.Sync()
	}
	return nil
}

func (r *Recorder) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// ReadAll decodes every record of a trace.
func ReadAll(rd io.Reader) ([]Record, error) {
	dec := decMode.NewDecoder(rd)
	var records []Record
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

func peekMessageType(frame []byte) string {
	var head struct {
		MessageType string `json:"message_type"`
	}
	if err := json.Unmarshal(frame, &head); err != nil {
		return ""
	}
	return head.MessageType
}
