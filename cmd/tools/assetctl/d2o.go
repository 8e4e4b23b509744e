package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/annel0/mmo-assets/internal/d2o"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newD2OCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "d2o",
		Short: "Чтение модулей D2O",
	}
	cmd.AddCommand(newD2OClassesCmd(), newD2ODumpCmd())
	return cmd
}

// openModule регистрирует файл под его базовым именем
func openModule(fs afero.Fs, path string) (*d2o.Container, string, error) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	c := d2o.NewContainer(d2o.NewDynamicFactory(), fs)
	if err := c.RegisterFile(name, path); err != nil {
		return nil, "", err
	}
	return c, name, nil
}

func newD2OClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes FILE",
		Short: "Показать схемы классов модуля",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, name, err := openModule(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "module %s: %d records\n", name, c.RecordCount(name))
			for _, cls := range c.Classes(name) {
				fmt.Fprintf(out, "  #%d %s\n", cls.ID, cls.QualifiedName())
				for _, f := range cls.Fields {
					fmt.Fprintf(out, "    %-24s %s\n", f.Name, f.Type)
				}
			}
			return nil
		},
	}
}

func newD2ODumpCmd() *cobra.Command {
	var key int32
	cmd := &cobra.Command{
		Use:   "dump FILE",
		Short: "Вывести записи модуля в JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, name, err := openModule(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("key") {
				records, err := c.ReadAll(name, true)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), records)
			}
			rec, ok, err := c.ReadObject(name, key)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key %d not found in %s", key, name)
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().Int32Var(&key, "key", 0, "ключ индекса одной записи")
	return cmd
}
