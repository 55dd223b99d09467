package walink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/truthmd/truthlink/internal/session"
)

// linker drives one whatsmeow client through a single linking attempt.
type linker struct {
	sessionID   string
	method      session.Method
	phone       string
	displayName string

	container *sqlstore.Container
	device    *store.Device
	client    *whatsmeow.Client

	events chan session.Event
	done   chan struct{}

	closeOnce sync.Once
	credOnce  sync.Once
}

// Open registers the callback handler and connects the underlying socket.
// For QR sessions the QR channel must be requested before Connect or the
// library will not emit codes.
func (l *linker) Open(ctx context.Context) error {
	l.client.AddEventHandler(l.handleLibraryEvent)

	var qrChan <-chan whatsmeow.QRChannelItem
	if l.method == session.MethodQR {
		var err error
		qrChan, err = l.client.GetQRChannel(ctx)
		if err != nil {
			return errors.Wrap(err, "request qr channel")
		}
	}

	if err := l.client.Connect(); err != nil {
		return errors.Wrap(err, "connect to whatsapp")
	}
	l.emit(session.Event{Kind: session.EventStatus, Status: session.StatusConnecting})

	if qrChan != nil {
		go l.pumpQR(qrChan)
	}
	if l.method == session.MethodPairing {
		go l.requestPairingCode(ctx)
	}
	return nil
}

func (l *linker) Events() <-chan session.Event { return l.events }

// Close disconnects the client. Device rows that never completed pairing
// are dropped from the whatsmeow store so they cannot pile up.
func (l *linker) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.client.Disconnect()
		if l.device.ID == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.container.DeleteDevice(ctx, l.device); err != nil {
				zap.L().Debug("unpaired device cleanup",
					zap.String("session_id", l.sessionID), zap.Error(err))
			}
		}
	})
}

// handleLibraryEvent normalizes whatsmeow's typed callback events.
func (l *linker) handleLibraryEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		zap.L().Info("phone accepted the link",
			zap.String("session_id", l.sessionID), zap.String("jid", e.ID.String()))
	case *events.Connected:
		l.completeLink()
	case *events.PairError:
		l.fail(fmt.Sprintf("pairing rejected: %v", e.Error))
	case *events.LoggedOut:
		l.fail("logged out by the phone")
	case *events.ClientOutdated:
		l.fail("client version rejected by the server")
	case *events.StreamError:
		l.fail("stream error " + e.Code)
	case *events.Disconnected:
		// transient; whatsmeow reconnects on its own
	default:
		zap.L().Debug("unhandled whatsapp event",
			zap.String("session_id", l.sessionID), zap.String("type", fmt.Sprintf("%T", evt)))
	}
}

// pumpQR forwards rotating QR payloads. Each emission supersedes the
// previous one; the channel closes once the flow ends either way.
func (l *linker) pumpQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		switch item.Event {
		case "code":
			l.emit(session.Event{Kind: session.EventQR, QRCode: item.Code})
		case whatsmeow.QRChannelSuccess.Event:
			// the Connected event carries the credential snapshot
		case whatsmeow.QRChannelTimeout.Event:
			l.fail("qr code expired before it was scanned")
		default:
			if item.Error != nil {
				l.fail("qr login aborted: " + item.Error.Error())
			} else {
				l.fail("qr login aborted: " + item.Event)
			}
		}
	}
}

// requestPairingCode asks the server for the short code the user types on
// the phone.
func (l *linker) requestPairingCode(ctx context.Context) {
	code, err := l.client.PairPhone(ctx, l.phone, true, whatsmeow.PairClientChrome, l.displayName)
	if err != nil {
		l.fail("request pairing code: " + err.Error())
		return
	}
	l.emit(session.Event{Kind: session.EventPairingCode, PairingCode: code})
}

// completeLink snapshots the device credential material exactly once and
// folds it into the terminal connected status event.
func (l *linker) completeLink() {
	l.credOnce.Do(func() {
		raw, err := marshalCredentials(l.client.Store)
		if err != nil {
			l.fail("credential snapshot failed: " + err.Error())
			return
		}
		l.emit(session.Event{
			Kind:        session.EventStatus,
			Status:      session.StatusConnected,
			Message:     "device linked",
			Credentials: raw,
		})
	})
}

func (l *linker) fail(message string) {
	l.emit(session.Event{Kind: session.EventStatus, Status: session.StatusFailed, Message: message})
}

// emit hands an event to the controller without ever blocking a closed
// linker: callbacks may still fire after teardown.
func (l *linker) emit(ev session.Event) {
	ev.SessionID = l.sessionID
	select {
	case l.events <- ev:
	case <-l.done:
	}
}
