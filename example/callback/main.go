package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ghalamif/AegisSense/pkg/aegissense"
)

func main() {
	flow, err := aegissense.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(rec aegissense.Record) error {
		fmt.Println(strings.Join(rec.Row(), " | "))
		return nil
	}

	if err := flow.Run(ctx, aegissense.StreamOutCallback("stdout", callback)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}
