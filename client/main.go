// client/main.go
package main

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
)

// 与服务端 network 包一致的消息类型
const (
	MsgTypeHeartbeat   uint16 = 1
	MsgTypeSubscribe   uint16 = 101
	MsgTypeUnsubscribe uint16 = 102
	MsgTypeRefresh     uint16 = 201
	MsgTypeSnapshot    uint16 = 301
	MsgTypeError       uint16 = 401
)

// sendMessage 封包: 2字节消息ID + 2字节数据长度 + 数据
func sendMessage(c *websocket.Conn, msgID uint16, data []byte) error {
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)
	return c.WriteMessage(websocket.BinaryMessage, packet)
}

func printSnapshot(payload []byte) {
	var snap struct {
		Rule      string    `json:"rule"`
		Generated time.Time `json:"generated"`
		Count     int       `json:"count"`
		Entries   []struct {
			ID    string   `json:"id"`
			Fired []string `json:"fired"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		log.Printf("snapshot (unparsed): %s", payload)
		return
	}
	fmt.Printf("=== %s @ %s: %d flagged ===\n", snap.Rule, snap.Generated.Format(time.RFC3339), snap.Count)
	for _, e := range snap.Entries {
		fmt.Printf("  %-12s %v\n", e.ID, e.Fired)
	}
}

func main() {
	rule := "at_risk"
	if len(os.Args) > 1 {
		rule = os.Args[1]
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	u := url.URL{Scheme: "ws", Host: "localhost:8080", Path: "/ws"}
	log.Printf("connecting to %s", u.String())

	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer c.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			if len(message) < 4 {
				continue
			}
			msgID := binary.BigEndian.Uint16(message[0:2])
			length := binary.BigEndian.Uint16(message[2:4])
			if len(message) < int(4+length) {
				continue
			}
			payload := message[4 : 4+length]

			switch msgID {
			case MsgTypeSubscribe:
				log.Printf("subscribed: %s", payload)
			case MsgTypeUnsubscribe:
				log.Printf("unsubscribed: %s", payload)
			case MsgTypeSnapshot:
				printSnapshot(payload)
			case MsgTypeError:
				log.Printf("server error: %s", payload)
			default:
				log.Printf("recv msgID=%d payload=%s", msgID, payload)
			}
		}
	}()

	// 订阅指定规则的推送频道
	subData, _ := json.Marshal(map[string]string{"rule": rule})
	if err := sendMessage(c, MsgTypeSubscribe, subData); err != nil {
		log.Println("subscribe:", err)
		return
	}

	// 标准输入敲 refresh 立刻要一帧
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if scanner.Text() != "refresh" {
				continue
			}
			cmd, _ := json.Marshal(map[string]string{"type": "refresh"})
			if err := sendMessage(c, MsgTypeRefresh, cmd); err != nil {
				log.Println("refresh:", err)
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := sendMessage(c, MsgTypeHeartbeat, []byte("ping")); err != nil {
				log.Println("heartbeat:", err)
				return
			}
		case <-interrupt:
			log.Println("interrupt")

			err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}
