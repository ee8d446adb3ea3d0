package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prohmpiriya/booking-rush-10k-rps/inventory/internal/domain"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout of initial inventory
//
//	inventory:
//	  - event_id: concert-2025
//	    ticket_type_id: vip
//	    ticket_type_name: VIP
//	    total_quantity: 100
//	    sold_quantity: 25
type SeedFile struct {
	Inventory []domain.ProvisionRequest `yaml:"inventory"`
}

// Provisioner is satisfied by ReservationEngine
type Provisioner interface {
	ProvisionInventory(ctx context.Context, req *domain.ProvisionRequest) (*domain.InventoryRecord, error)
}

// ParseSeed decodes a seed document
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode seed: %w", err)
	}
	return &seed, nil
}

// LoadSeedFile provisions every entry of the file at path. Entries that already exist are skipped.
func LoadSeedFile(ctx context.Context, p Provisioner, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	seed, err := ParseSeed(f)
	if err != nil {
		return 0, err
	}
	return ApplySeed(ctx, p, seed)
}

// ApplySeed provisions the seed entries and returns how many were created
func ApplySeed(ctx context.Context, p Provisioner, seed *SeedFile) (int, error) {
	created := 0
	for i := range seed.Inventory {
		req := seed.Inventory[i]
		if _, err := p.ProvisionInventory(ctx, &req); err != nil {
			if errors.Is(err, domain.ErrInventoryExists) {
				continue
			}
			return created, fmt.Errorf("seed entry %d (%s): %w", i, domain.InventoryKey(req.EventID, req.TicketTypeID), err)
		}
		created++
	}
	return created, nil
}
