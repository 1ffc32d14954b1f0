package upload

import (
	"context"

	"github.com/bitrise-io/go-s3up/stepconf"
	"github.com/bitrise-io/go-s3up/transfer"
	"github.com/bitrise-io/go-s3up/upload/network"
	"github.com/bitrise-io/go-utils/v2/env"
	"github.com/bitrise-io/go-utils/v2/log"
)

// NewEnvStoreFactory returns a StoreFactory reading the store connection from envRepo.
func NewEnvStoreFactory(envRepo env.Repository, logger log.Logger) StoreFactory {
	return func(ctx context.Context) (transfer.Store, error) {
		config, err := network.ParseConfig(envRepo)
		if err != nil {
			return nil, err
		}
		stepconf.Print(config)

		return network.NewStore(ctx, config, logger)
	}
}
