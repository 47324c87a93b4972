package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/herdparty/logger"
	"github.com/wfunc/herdparty/network"
)

// send formats and sends a message to the WebSocket server.
func send(c *websocket.Conn, msgID uint16, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	packet, err := network.EncodePacket(msgID, data)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func main() {
	addr := flag.String("addr", "localhost:8080", "server address")
	name := flag.String("name", "", "display name")
	bot := flag.Bool("bot", false, "ready up and wander randomly")
	verbose := flag.Bool("v", false, "log world snapshots")
	flag.Parse()

	logger.InitDevelopment()
	defer logger.Sync()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	logger.Log.Infof("Connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		logger.Log.Fatalf("Dial failed: %v", err)
	}
	defer c.Close()

	done := make(chan struct{})

	// Read loop
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				logger.Log.Infof("Read error: %v", err)
				return
			}
			p, err := network.DecodePacket(message)
			if err != nil {
				logger.Log.Warnf("Received invalid packet of size %d", len(message))
				continue
			}
			if p.MsgID == network.MsgTypeWorldSnapshot && !*verbose {
				continue
			}
			logger.Log.Infof("<- RECV (ID: %d): %s", p.MsgID, string(p.Data))
		}
	}()

	if err := send(c, network.MsgTypeHello, network.HelloRequest{Name: *name}); err != nil {
		logger.Log.Errorf("Write error: %v", err)
		return
	}

	lines := make(chan string)
	go func() {
		reader := bufio.NewScanner(os.Stdin)
		for reader.Scan() {
			lines <- strings.TrimSpace(reader.Text())
		}
	}()

	heartbeat := time.NewTicker(10 * time.Second)
	defer heartbeat.Stop()
	var wander <-chan time.Time
	if *bot {
		send(c, network.MsgTypeSetReady, network.ReadyRequest{Ready: true})
		t := time.NewTicker(500 * time.Millisecond)
		defer t.Stop()
		wander = t.C
	} else {
		logger.Log.Info("Commands: ready, unready, again, name <n>, report <n>, move <x> <z> [run], jump, stop")
	}

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			logger.Log.Info("Interrupt received, closing connection.")
			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				logger.Log.Warnf("Write close error: %v", err)
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		case <-heartbeat.C:
			send(c, network.MsgTypeHeartbeat, struct{}{})
		case <-wander:
			send(c, network.MsgTypeInput, network.InputRequest{
				MoveX: rand.Float64()*2 - 1,
				MoveZ: rand.Float64()*2 - 1,
				Run:   rand.Intn(4) == 0,
				Jump:  rand.Intn(10) == 0,
			})
		case text := <-lines:
			msgID, v, ok := parseCommand(text)
			if !ok {
				logger.Log.Warnf("Unknown command %q", text)
				continue
			}
			if err := send(c, msgID, v); err != nil {
				logger.Log.Errorf("Write error: %v", err)
				return
			}
			logger.Log.Infof("-> SENT: %s", text)
		}
	}
}

func parseCommand(text string) (uint16, any, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, nil, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(text, fields[0]))
	switch fields[0] {
	case "ready":
		return network.MsgTypeSetReady, network.ReadyRequest{Ready: true}, true
	case "unready":
		return network.MsgTypeSetReady, network.ReadyRequest{Ready: false}, true
	case "again":
		return network.MsgTypePlayAgain, struct{}{}, true
	case "name":
		return network.MsgTypeSetName, network.NameRequest{Name: rest}, true
	case "report":
		return network.MsgTypeReportName, network.NameRequest{Name: rest}, true
	case "jump":
		return network.MsgTypeInput, network.InputRequest{Jump: true}, true
	case "stop":
		return network.MsgTypeInput, network.InputRequest{}, true
	case "move":
		if len(fields) < 3 {
			return 0, nil, false
		}
		x, errX := strconv.ParseFloat(fields[1], 64)
		z, errZ := strconv.ParseFloat(fields[2], 64)
		if errX != nil || errZ != nil {
			return 0, nil, false
		}
		return network.MsgTypeInput, network.InputRequest{MoveX: x, MoveZ: z, Run: len(fields) > 3 && fields[3] == "run"}, true
	}
	return 0, nil, false
}
