package main

import (
	"fmt"
	"math"
	"sync"

	"github.com/gookit/color"
	sio "github.com/karagenc/sioengine"
)

var colors = []string{
	"#e21400", "#91580f", "#f8a700", "#f78b00",
	"#58dc00", "#287b00", "#a8f07a", "#4ae8c4",
	"#3b88eb", "#3824aa", "#a700ff", "#d300e7",
}

func usernameColor(username string) color.RGBColor {
	hash := 7
	for _, r := range username {
		hash = int(r) + (hash << 5) - hash
	}
	index := int(math.Abs(float64(hash % len(colors))))
	return color.Hex(colors[index])
}

type api struct {
	numUsers  int
	usernames map[*sio.Socket]string
	mu        sync.Mutex
}

func newAPI() *api {
	return &api{
		usernames: make(map[*sio.Socket]string),
	}
}

type (
	userCount struct {
		NumUsers int `json:"numUsers"`
	}

	userEvent struct {
		Username string `json:"username"`
		NumUsers int    `json:"numUsers,omitempty"`
	}

	message struct {
		Username string `json:"username"`
		Message  string `json:"message"`
	}
)

func (a *api) setup(nsp *sio.Namespace) {
	nsp.OnConnect(func(socket *sio.Socket) error {
		fmt.Printf("Socket with ID %s is connected\n", socket.ID())

		socket.On("new message", func(args sio.Args, ackRequested bool) ([]any, error) {
			data, _ := args.String(0)
			username := a.username(socket)
			fmt.Printf("%s: %s\n", usernameColor(username).Sprint(username), data)
			return nil, socket.Broadcast("new message", &message{Username: username, Message: data})
		})

		socket.On("add user", func(args sio.Args, ackRequested bool) ([]any, error) {
			username, ok := args.String(0)
			if !ok {
				return nil, fmt.Errorf("username must be a string")
			}

			a.mu.Lock()
			if _, ok := a.usernames[socket]; ok {
				a.mu.Unlock()
				return nil, nil
			}
			a.usernames[socket] = username
			a.numUsers++
			numUsers := a.numUsers
			a.mu.Unlock()

			fmt.Printf("New user: %s\n", usernameColor(username).Sprint(username))
			socket.Join("chat")

			err := socket.Emit("login", &userCount{NumUsers: numUsers})
			if err != nil {
				return nil, err
			}
			return []any{true}, socket.BroadcastTo("chat", "user joined", &userEvent{Username: username, NumUsers: numUsers})
		})

		socket.On("typing", func(args sio.Args, ackRequested bool) ([]any, error) {
			return nil, socket.BroadcastTo("chat", "typing", &userEvent{Username: a.username(socket)})
		})
		socket.On("stop typing", func(args sio.Args, ackRequested bool) ([]any, error) {
			return nil, socket.BroadcastTo("chat", "stop typing", &userEvent{Username: a.username(socket)})
		})

		socket.OnDisconnect(func(reason sio.Reason, msg string) error {
			fmt.Printf("Socket with ID %s is disconnected: %s\n", socket.ID(), reason)

			a.mu.Lock()
			username, ok := a.usernames[socket]
			if !ok {
				a.mu.Unlock()
				return nil
			}
			delete(a.usernames, socket)
			a.numUsers--
			numUsers := a.numUsers
			a.mu.Unlock()

			return socket.BroadcastTo("chat", "user left", &userEvent{Username: username, NumUsers: numUsers})
		})
		return nil
	})
}

func (a *api) username(socket *sio.Socket) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usernames[socket]
}
