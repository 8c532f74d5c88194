// Command meter-demo runs a scripted month of building activity against an
// in-process coordinator and prints every meter event as a log line.
package main

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"submeter/backend/libs/logging"
	"submeter/backend/services/metering-service/internal/coordinator"
	"submeter/backend/services/metering-service/internal/meter"
	"submeter/backend/services/metering-service/internal/registry"
	"submeter/backend/services/metering-service/internal/sink"
)

func main() {
	logger, err := logging.NewLogger("")
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // best-effort flush

	building := coordinator.New(registry.NewMemoryRegistry(), sink.NewZapSink(logger))
	if err := run(building, time.Now()); err != nil {
		logger.Fatal("demo failed", zap.Error(err))
	}
}

func run(building *coordinator.Coordinator, now time.Time) error {
	user1, err := building.AddMeter("A-15-1")
	if err != nil {
		return err
	}
	user2, err := building.AddMeter("A-21-11")
	if err != nil {
		return err
	}

	user1.Consume(10)
	user2.Consume(30)
	user2.Consume(500)

	building.MonitorMeters()

	building.Log(user1.String())
	user1.PayBill(decimal.Zero, now)

	building.Log(user2.String())
	user2.PayBill(decimal.Zero, now)

	building.MonitorMeters()

	user3, err := building.AddMeter("A-420-3",
		coordinator.WithPolicy(meter.PrePaid{}),
		coordinator.WithConsumption(190),
		coordinator.WithBalance(decimal.NewFromInt(10)),
	)
	if err != nil {
		return err
	}
	user3.Consume(40)

	building.Log(user3.String())
	user3.PayBill(decimal.NewFromInt(10), now)

	building.MonitorMeters()

	if err := building.ActivateMeter("A-420-3"); err != nil {
		return err
	}

	user1.Consume(10)
	user2.Consume(30)
	user3.Consume(20)

	if err := building.MonitorMeterHistory("A-420-3"); err != nil {
		return err
	}

	if err := building.ResetAll(); err != nil {
		return err
	}
	building.MonitorMeters()
	return nil
}
