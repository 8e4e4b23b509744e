package main

import (
	"context"
	"fmt"

	"github.com/annel0/mmo-assets/internal/assets"
	"github.com/annel0/mmo-assets/internal/config"
	"github.com/annel0/mmo-assets/internal/dlm"
	"github.com/annel0/mmo-assets/internal/storage"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newDLMCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlm",
		Short: "Чтение и конвертация карт DLM",
	}
	cmd.AddCommand(newDLMInfoCmd(), newDLMDecryptCmd(), newDLMImportCmd())
	return cmd
}

// mapSummary - краткая сводка карты без массива ячеек
type mapSummary struct {
	Version           int8    `json:"version"`
	ID                uint32  `json:"id"`
	Encrypted         bool    `json:"encrypted"`
	SubareaID         int32   `json:"subarea_id"`
	ZoomScale         float64 `json:"zoom_scale"`
	Layers            int     `json:"layers"`
	Elements          int     `json:"elements"`
	Fixtures          int     `json:"fixtures"`
	PresentCells      int     `json:"present_cells"`
	WalkableCells     int     `json:"walkable_cells"`
	NewMovementSystem bool    `json:"using_new_movement_system"`
	Digest            string  `json:"blake3"`
}

func summarize(m *dlm.Map, raw []byte) mapSummary {
	s := mapSummary{
		Version:           m.Version,
		ID:                m.ID,
		Encrypted:         m.Encrypted,
		SubareaID:         m.SubareaID,
		ZoomScale:         m.ZoomScale,
		Layers:            len(m.Layers),
		Fixtures:          len(m.BackgroundFixtures) + len(m.ForegroundFixtures),
		NewMovementSystem: m.UsingNewMovementSystem,
		Digest:            storage.DigestOf(raw).String(),
	}
	for _, l := range m.Layers {
		for _, c := range l.Cells {
			s.Elements += len(c.Elements)
		}
	}
	for i := range m.Cells {
		if m.Cells[i].Present() {
			s.PresentCells++
			if m.Cells[i].Walkable() {
				s.WalkableCells++
			}
		}
	}
	return s
}

func readMap(fs afero.Fs, path string) (*dlm.Map, []byte, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, nil, err
	}
	m, err := dlm.Decode(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, raw, nil
}

func newDLMInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info FILE",
		Short: "Показать сводку карты",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, raw, err := readMap(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summarize(m, raw))
		},
	}
}

func newDLMDecryptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt IN OUT",
		Short: "Перезаписать карту без шифрования тела",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()
			m, raw, err := readMap(fs, args[0])
			if err != nil {
				return err
			}
			m.Encrypted = false
			plain, err := dlm.Encode(m)
			if err != nil {
				return err
			}
			if err := afero.WriteFile(fs, args[1], plain, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "map %d: %d -> %d bytes\n", m.ID, len(raw), len(plain))
			return nil
		},
	}
}

func newDLMImportCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Импортировать каталог карт в архив",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			archive, err := storage.NewMapArchive(cfg.Storage.Path)
			if err != nil {
				return err
			}
			defer archive.Close()

			svc, err := assets.NewService(assets.Options{Config: cfg.Assets, FS: afero.NewOsFs(), Archive: archive})
			if err != nil {
				return err
			}
			report, err := svc.ImportMaps(context.Background())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "путь к YAML конфигурации")
	return cmd
}
