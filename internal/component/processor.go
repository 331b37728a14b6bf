package component

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/dtsim/server/internal/actor"
	"github.com/dtsim/server/internal/gm"
	"github.com/dtsim/server/internal/message"
)

const ProcessorName = "DefaultMessageProcessor"

// Processor mirrors remote actors into the local game manager and carries
// out pause, resume and time change requests.
//
// A processor with authority turns requests into commands and broadcasts
// them; without authority it only obeys commands.
type Processor struct {
	gm.BaseComponent
	library   *actor.Library
	authority bool
	log       *zap.Logger
}

func NewProcessor(library *actor.Library, authority bool, log *zap.Logger) *Processor {
	return &Processor{
		BaseComponent: gm.NewBaseComponent(ProcessorName),
		library:       library,
		authority:     authority,
		log:           log,
	}
}

func (p *Processor) isLocal(msg *message.Message) bool {
	return msg.Source == nil || msg.Source.Equal(p.GameManager().MachineInfo())
}

func (p *Processor) ProcessMessage(msg *message.Message) error {
	switch msg.Type() {
	case message.TickLocal, message.TickRemote, message.TickEndOfFrame:
		return nil
	case message.InfoActorCreated, message.InfoActorUpdated:
		if p.isLocal(msg) {
			return nil
		}
		return p.remoteActorUpdate(msg)
	case message.InfoActorDeleted:
		if p.isLocal(msg) {
			return nil
		}
		return p.remoteActorDelete(msg)
	case message.RequestPause, message.RequestResume, message.RequestSetTime:
		return p.request(msg)
	case message.CommandPause:
		p.GameManager().SetPaused(true)
	case message.CommandResume:
		p.GameManager().SetPaused(false)
	case message.CommandSetTime:
		simTime, scale, err := readTimeChange(msg)
		if err != nil {
			return fmt.Errorf("set time command: %w", err)
		}
		return p.GameManager().ChangeTimeSettings(simTime, scale)
	case message.ServerRequestRejected:
		cause, _ := msg.GetStr(message.ParamCause)
		var causing string
		if msg.Causing != nil {
			causing = msg.Causing.Type().Name()
		}
		p.log.Warn("request rejected", zap.String("request", causing), zap.String("cause", cause))
	}
	return nil
}

func (p *Processor) remoteActorUpdate(msg *message.Message) error {
	g := p.GameManager()
	if existing := g.FindActorByID(msg.AboutActorID); existing != nil {
		if !existing.IsRemote() {
			p.log.Warn("remote update for local actor ignored",
				zap.Stringer("actor", msg.AboutActorID),
				zap.Stringer("source", msg.Source))
			return nil
		}
		if existing.IsDeleted() {
			return nil
		}
		return actor.ApplyUpdate(existing, msg)
	}

	t, err := actor.UpdateType(msg)
	if err != nil {
		return fmt.Errorf("remote actor %s: %w", msg.AboutActorID, err)
	}
	name, _ := msg.GetStr(message.ParamActorName)
	proxy, err := p.library.CreateWithID(t, name, msg.AboutActorID)
	if err != nil {
		if errors.Is(err, actor.ErrUnknownActorType) {
			p.log.Warn("remote actor of unknown type", zap.Stringer("type", t), zap.Stringer("actor", msg.AboutActorID))
			return nil
		}
		return err
	}
	proxy.SetRemote(true)
	if err := actor.ApplyUpdate(proxy, msg); err != nil {
		return err
	}
	return g.AddActor(proxy)
}

func (p *Processor) remoteActorDelete(msg *message.Message) error {
	g := p.GameManager()
	existing := g.FindActorByID(msg.AboutActorID)
	if existing == nil {
		return nil
	}
	if !existing.IsRemote() {
		p.log.Warn("remote delete for local actor ignored", zap.Stringer("actor", msg.AboutActorID))
		return nil
	}
	g.DeleteActor(msg.AboutActorID)
	return nil
}

func (p *Processor) request(msg *message.Message) error {
	if !p.authority {
		return nil
	}
	g := p.GameManager()
	f := g.MessageFactory()

	var cmd *message.Message
	switch msg.Type() {
	case message.RequestPause:
		if g.IsPaused() {
			g.RejectMessage(msg, "already paused")
			return nil
		}
		cmd = f.CreateMessage(message.CommandPause)
	case message.RequestResume:
		if !g.IsPaused() {
			g.RejectMessage(msg, "not paused")
			return nil
		}
		cmd = f.CreateMessage(message.CommandResume)
	case message.RequestSetTime:
		simTime, scale, err := readTimeChange(msg)
		if err != nil {
			g.RejectMessage(msg, err.Error())
			return nil
		}
		cmd = f.CreateMessage(message.CommandSetTime)
		_ = cmd.SetDouble(message.ParamSimTime, simTime.Seconds())
		_ = cmd.SetFloat(message.ParamTimeScale, float32(scale))
	}
	cmd.Causing = msg
	g.SendMessage(cmd)
	return nil
}

func readTimeChange(msg *message.Message) (time.Duration, float64, error) {
	sec, err := msg.GetDouble(message.ParamSimTime)
	if err != nil {
		return 0, 0, err
	}
	scale, err := msg.GetFloat(message.ParamTimeScale)
	if err != nil {
		return 0, 0, err
	}
	if sec < 0 || math.IsNaN(sec) {
		return 0, 0, fmt.Errorf("simulation time %v: %w", sec, message.ErrBadValue)
	}
	if scale <= 0 {
		return 0, 0, fmt.Errorf("time scale %v: %w", scale, message.ErrBadValue)
	}
	return time.Duration(sec * float64(time.Second)), float64(scale), nil
}
