package config

import (
	"flag"
	"fmt"
)

const HelpMessage = `Driver engine

Usage:
  engine -mode=<mode> [-config=config.yaml] [-month=YYYY-MM]

Modes:
  engine-service   HTTP API: dispatch ranking, performance, earnings, penalties
  event-consumer   RabbitMQ consumer of trip, attendance and complaint events
  settlement-job   settle monthly earnings of every driver and exit

Flags:
`

func PrintHelp() {
	fmt.Print(HelpMessage)
	flag.PrintDefaults()
}
