package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/AegisSense"
)

func main() {
	flow, err := aegissense.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, records, closeRecords := aegissense.NewChannelSink("fanout", 32)
	defer closeRecords()

	go fanoutWorker("uplink", records)

	if err := flow.Run(ctx, aegissense.StreamOutSink(sink)); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("runtime error: %v", err)
	}
}

func fanoutWorker(name string, records <-chan aegissense.Record) {
	for rec := range records {
		co2 := rec.Get(aegissense.FieldCO2)
		if !co2.Valid {
			continue
		}
		fmt.Printf("[%s] %s co2=%s temp=%s\n", name,
			rec.Get(aegissense.FieldTime), co2, rec.Get(aegissense.FieldTempC))
	}
}
