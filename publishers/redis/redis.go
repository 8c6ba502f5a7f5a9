package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juju/loggo"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"bb-battery-state/config"
	"bb-battery-state/params"
	"bb-battery-state/publishers/common"
)

var log = loggo.GetLogger("bbbs.redis")

const opTimeout = 2 * time.Second

// NewPublisher connects to redis. Every record overwrites the fields of
// the configured hash, then the field list is announced on the channel.
func NewPublisher(ctx context.Context, cfg config.Redis) (common.Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", cfg.Address)
	}
	log.Infof("Connected to redis at %s", cfg.Address)

	return &Publisher{
		ctx:     ctx,
		client:  client,
		hash:    cfg.Hash,
		channel: cfg.Channel,
	}, nil
}

type Publisher struct {
	ctx     context.Context
	client  *redis.Client
	hash    string
	channel string
}

// Publish atomically updates the hash and notifies subscribers.
func (p *Publisher) Publish(state params.BatteryState) error {
	ctx, cancel := context.WithTimeout(p.ctx, opTimeout)
	defer cancel()

	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, p.hash, Fields(state))
	pipe.Publish(ctx, p.channel, "state")
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "updating %s", p.hash)
	}
	log.Tracef("updated %s and notified %s", p.hash, p.channel)
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// Fields flattens state into the hash fields stored in redis.
func Fields(state params.BatteryState) map[string]interface{} {
	cells := make([]string, 0, len(state.CellVoltage))
	for _, v := range state.CellVoltage {
		cells = append(cells, fmt.Sprintf("%.3f", v))
	}

	present := "false"
	if state.Present {
		present = "true"
	}

	var timestamp int64
	if !state.Timestamp.IsZero() {
		timestamp = state.Timestamp.Unix()
	}

	return map[string]interface{}{
		"present":                 present,
		"voltage":                 fmt.Sprintf("%.3f", state.Voltage),
		"percentage":              fmt.Sprintf("%.4f", state.Percentage),
		"power-supply-status":     state.PowerSupplyStatus,
		"power-supply-health":     state.PowerSupplyHealth,
		"power-supply-technology": state.PowerSupplyTechnology,
		"min-cell-voltage":        fmt.Sprintf("%.3f", state.MinCellVoltage),
		"max-cell-voltage":        fmt.Sprintf("%.3f", state.MaxCellVoltage),
		"cell-voltage":            strings.Join(cells, ","),
		"jack-voltage":            fmt.Sprintf("%.3f", state.JackVoltage),
		"timestamp":               timestamp,
	}
}
