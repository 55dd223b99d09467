package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mdp/qrterminal/v3"

	"github.com/truthmd/truthlink/internal/session"
	"github.com/truthmd/truthlink/internal/walink"
	"github.com/truthmd/truthlink/pkg/credstr"
	"github.com/truthmd/truthlink/pkg/sessionid"
)

// pairterm runs one linking attempt from the terminal: QR codes render
// inline, pairing codes print as text, and the credential string prints on
// success.

var (
	dbFile = flag.String("db", "pairterm.db", "sqlite database file for the device store")
	phone  = flag.String("phone", "", "phone number for pairing-code linking; empty uses QR")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", *dbFile))
	if err != nil {
		fatal("open database: %v", err)
	}
	defer db.Close()

	factory, err := walink.NewFactory(ctx, db, "sqlite")
	if err != nil {
		fatal("init device store: %v", err)
	}

	method := session.MethodQR
	if *phone != "" {
		method = session.MethodPairing
	}

	id := sessionid.New()
	linker, err := factory.New(id, method, *phone)
	if err != nil {
		fatal("create linker: %v", err)
	}
	defer linker.Close()

	if err := linker.Open(ctx); err != nil {
		fatal("open link: %v", err)
	}
	fmt.Println("session:", id)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("interrupted")
			return
		case ev, ok := <-linker.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case session.EventQR:
				fmt.Println("scan with WhatsApp:")
				qrterminal.GenerateHalfBlock(ev.QRCode, qrterminal.L, os.Stdout)
			case session.EventPairingCode:
				fmt.Println("enter this code on your phone:", ev.PairingCode)
			case session.EventStatus:
				switch ev.Status {
				case session.StatusConnected:
					fmt.Println("linked successfully")
					fmt.Println(credstr.Encode(ev.Credentials))
					return
				case session.StatusFailed:
					fatal("linking failed: %s", ev.Message)
				default:
					fmt.Println("status:", ev.Status)
				}
			}
		}
	}
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
