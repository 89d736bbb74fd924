// Command sioserver serves the chat demo over socket.io.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	sio "github.com/karagenc/sioengine"
	"github.com/spf13/pflag"
)

func main() {
	var (
		addr           = pflag.StringP("addr", "a", "127.0.0.1:3000", "Address to listen on")
		public         = pflag.String("public", "public", "Directory of the static files")
		pingInterval   = pflag.Duration("ping-interval", 25*time.Second, "Interval at which clients ping")
		pingTimeout    = pflag.Duration("ping-timeout", 20*time.Second, "How long to wait for a ping after the interval")
		upgradeTimeout = pflag.Duration("upgrade-timeout", 10*time.Second, "How long an upgrade may take")
		compression    = pflag.Bool("compression", false, "Gzip polling responses")
		transports     = pflag.StringSlice("transports", []string{"polling", "websocket"}, "Transports to allow")
		namespaces     = pflag.StringSlice("namespace", nil, "Additional namespaces to serve the chat on")
		debug          = pflag.BoolP("debug", "d", false, "Print debug output")
	)
	pflag.Parse()

	config := &sio.ServerConfig{
		Registry: sio.RegistryConfig{
			PingInterval: *pingInterval,
			PingTimeout:  *pingTimeout,
			OnError: func(err error) {
				color.Error.Printf("Error: %s\n", err)
			},
		},
		UpgradeTimeout:  *upgradeTimeout,
		HTTPCompression: *compression,
		Transports:      *transports,
	}
	if *debug {
		config.Registry.Debugger = sio.NewPrintDebugger()
	}

	io := sio.NewServer(config)

	newAPI().setup(io.Root())
	for _, name := range *namespaces {
		newAPI().setup(io.Of(name))
	}

	router := http.NewServeMux()
	// Make sure to have a slash at the end of the URL.
	// Otherwise requests might match with a file that has an socket.io prefix (such as socket.io.min.js).
	router.Handle("/socket.io/", io)
	router.Handle("/", http.FileServer(http.Dir(*public)))

	server := &http.Server{
		Addr:    *addr,
		Handler: router,

		ReadTimeout: 120 * time.Second,
		IdleTimeout: 120 * time.Second,
		// Polls are held for up to ping interval + ping timeout.
		WriteTimeout: *pingInterval + *pingTimeout + 10*time.Second,
	}

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c

		fmt.Println("Shutting down")
		io.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	color.Info.Printf("Listening on: %s\n", *addr)
	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		log.Fatalln(err)
	}
}
