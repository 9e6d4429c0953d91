package sequence

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hudlink-protocol/hudlink-go/pkg/frame"
	"github.com/hudlink-protocol/hudlink-go/pkg/wire"
)

// ErrNoSteps indicates a sequence definition without steps.
var ErrNoSteps = errors.New("sequence has no steps")

// fileSequence is the YAML shape of a sequence definition:
//
//	name: dashboard-probe
//	steps:
//	  - name: wake
//	    service: 0x80-00
//	    payload: "080e6a00"
//	    message_id: true
//	    want_ack: true
//	    ack_timeout: 500ms
//	    wait_after: 300ms
type fileSequence struct {
	Name  string     `yaml:"name"`
	Steps []fileStep `yaml:"steps"`
}

type fileStep struct {
	Name       string `yaml:"name"`
	Service    string `yaml:"service"`
	Payload    string `yaml:"payload"`
	MessageID  bool   `yaml:"message_id"`
	WantAck    bool   `yaml:"want_ack"`
	AckTimeout string `yaml:"ack_timeout"`
	WaitAfter  string `yaml:"wait_after"`
}

// Load reads a YAML sequence definition. Payloads are hex strings,
// with `message_id: true` appending the allocated message id as TLV
// field 2.
func Load(r io.Reader) (Sequence, error) {
	var def fileSequence
	if err := yaml.NewDecoder(r).Decode(&def); err != nil {
		return Sequence{}, fmt.Errorf("parsing sequence definition: %w", err)
	}
	if len(def.Steps) == 0 {
		return Sequence{}, ErrNoSteps
	}

	seq := Sequence{Name: def.Name, Steps: make([]Step, 0, len(def.Steps))}
	for i, fs := range def.Steps {
		step, err := fs.toStep()
		if err != nil {
			return Sequence{}, fmt.Errorf("step %d (%s): %w", i, fs.Name, err)
		}
		seq.Steps = append(seq.Steps, step)
	}
	return seq, nil
}

func (fs fileStep) toStep() (Step, error) {
	svc, err := frame.ParseService(fs.Service)
	if err != nil {
		return Step{}, err
	}

	payload, err := hex.DecodeString(strings.ReplaceAll(fs.Payload, " ", ""))
	if err != nil {
		return Step{}, fmt.Errorf("invalid payload hex: %w", err)
	}

	step := Step{
		Name:    fs.Name,
		Service: svc,
		WantAck: fs.WantAck,
	}

	if fs.MessageID {
		step.Build = func(msgID uint32) []byte {
			return wire.NewBuilder().Raw(payload).Varint(wire.FieldMessageID, uint64(msgID)).Build()
		}
	} else {
		step.Build = func(uint32) []byte { return payload }
	}

	if step.WaitAfter, err = parseDuration(fs.WaitAfter); err != nil {
		return Step{}, fmt.Errorf("invalid wait_after: %w", err)
	}
	if step.AckTimeout, err = parseDuration(fs.AckTimeout); err != nil {
		return Step{}, fmt.Errorf("invalid ack_timeout: %w", err)
	}
	return step, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
