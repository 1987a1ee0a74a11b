package storage

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
)

// provider is a Database that is validated and connected after flags are
// parsed.
type provider interface {
	Database
	Validate() error
	Init(ctx context.Context) error
}

// Configured registers the storage-provider flag and returns a Database that
// forwards to the selected provider once flags are parsed.
func Configured() Database {
	name := lflag.String("storage-provider", "none", "Where settings, holidays and prices are persisted (none, firestore)")

	providers := map[string]provider{
		"firestore": configuredFirestore(),
	}

	db := &struct{ Database }{Database: None{}}
	lflag.Do(func() {
		if *name == "" || *name == "none" {
			return
		}
		p, ok := providers[*name]
		if !ok {
			panic(fmt.Sprintf("unknown storage provider %q", *name))
		}
		if err := p.Validate(); err != nil {
			panic(fmt.Sprintf("invalid %s storage config: %v", *name, err))
		}
		if err := p.Init(context.Background()); err != nil {
			panic(fmt.Sprintf("failed to init %s storage: %v", *name, err))
		}
		db.Database = p
	})
	return db
}
