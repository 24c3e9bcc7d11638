package channel

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/oshokin/channelup/internal/domain/installation"
	"github.com/oshokin/channelup/internal/logger"
	"github.com/oshokin/channelup/internal/repository/metadata"
	"github.com/oshokin/channelup/internal/service/operation"
)

var (
	errUnnamedChannel = errors.New("channel name is required")
	errChannelExists  = errors.New("channel already exists")
	errUnknownChannel = errors.New("channel not found")
)

// Options are inputs of the channel operations.
type Options struct {
	Env        *operation.Environment
	InstallDir string
	// Channel is added by Add.
	Channel installation.Channel
	// Name selects the channel removed by Remove.
	Name string
}

// List returns the recorded channels in priority order.
func List(ctx context.Context, opts *Options) ([]installation.Channel, error) {
	md, err := opts.Env.Load(logger.WithName(ctx, "channel-list"), opts.InstallDir)
	if err != nil {
		return nil, err
	}

	return md.Channels, nil
}

// Add appends a channel with the lowest priority.
func Add(ctx context.Context, opts *Options) ([]installation.Channel, error) {
	ctx = logger.WithName(ctx, "channel-add")

	if opts.Channel.Name == "" {
		return nil, &installation.ChannelConfigError{Err: errUnnamedChannel}
	}

	return modify(ctx, opts, func(channels []installation.Channel) ([]installation.Channel, error) {
		if slices.ContainsFunc(channels, func(ch installation.Channel) bool { return ch.Name == opts.Channel.Name }) {
			return nil, &installation.ChannelConfigError{Channel: opts.Channel.Name, Err: errChannelExists}
		}

		return append(channels, opts.Channel.Clone()), nil
	})
}

// Remove deletes the named channel. The last channel cannot be removed.
func Remove(ctx context.Context, opts *Options) ([]installation.Channel, error) {
	ctx = logger.WithName(ctx, "channel-remove")

	return modify(ctx, opts, func(channels []installation.Channel) ([]installation.Channel, error) {
		idx := slices.IndexFunc(channels, func(ch installation.Channel) bool { return ch.Name == opts.Name })
		if idx < 0 {
			return nil, &installation.ChannelConfigError{Channel: opts.Name, Err: errUnknownChannel}
		}

		return slices.Delete(channels, idx, idx+1), nil
	})
}

func modify(
	ctx context.Context,
	opts *Options,
	change func([]installation.Channel) ([]installation.Channel, error),
) ([]installation.Channel, error) {
	release, err := opts.Env.Guard(ctx, opts.InstallDir)
	if err != nil {
		return nil, err
	}

	defer release()

	store := metadata.NewStore(opts.InstallDir)

	md, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}

	channels, err := change(installation.CloneChannels(md.Channels))
	if err != nil {
		return nil, err
	}

	if err = installation.ValidateChannels(channels); err != nil {
		return nil, err
	}

	if err = store.WriteChannels(ctx, channels); err != nil {
		return nil, fmt.Errorf("record channels: %w", err)
	}

	logger.InfoKV(ctx, "Channels recorded", "channels", len(channels))

	return channels, nil
}
