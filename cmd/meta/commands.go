package meta

import (
	"fmt"
	"github.com/ValentinKolb/lmstore/cmd/util"
	"github.com/ValentinKolb/lmstore/lib/codec"
	"github.com/ValentinKolb/lmstore/lib/store"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"sort"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [layer] [key]",
		Short: "Prints the value of an entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			layer, key := args[0], args[1]
			return util.WithStore(func(s store.IStore) error {
				value, ok, err := s.GetEntry(layer, key)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("key %s not found in layer %s", key, layer)
				}
				fmt.Println(value)
				return nil
			})
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [layer] [key] [value]",
		Short: "Sets the value of an entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			layer, key, value := args[0], args[1], args[2]
			return util.WithStore(func(s store.IStore) error {
				if err := s.PutEntry(layer, key, value); err != nil {
					return err
				}
				fmt.Println("put successfully")
				return nil
			})
		},
	}
	dumpCmd = &cobra.Command{
		Use:   "dump [layer]",
		Short: "Prints all entries of a layer sorted by key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layer := args[0]
			decode, _ := cmd.Flags().GetBool("decode")

			return util.WithStore(func(s store.IStore) error {
				metadata, err := s.GetLayerMetadata(layer)
				if err != nil {
					return err
				}

				keys := make([]string, 0, len(metadata))
				for k := range metadata {
					keys = append(keys, k)
				}
				sort.Strings(keys)

				for _, k := range keys {
					value := metadata[k]
					if decode {
						if value, _, err = s.GetEntry(layer, k); err != nil {
							return err
						}
					}
					fmt.Printf("%s=%s\n", k, value)
				}
				return nil
			})
		},
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate [layer]...",
		Short: "Writes layers in the current (compressed) format",
		Long: `Loads each layer from whichever metadata file exists and writes it in the current,
gzip compressed format. The legacy file is left in place. Layers already stored in the
current format are written again unchanged.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewBasePathFs(afero.NewOsFs(), viper.GetString("root"))
			c := codec.NewFileCodec(fs, nil)

			return util.WithStore(func(s store.IStore) error {
				rewriter, ok := s.(store.IRewriter)
				if !ok {
					return fmt.Errorf("store does not support migration")
				}

				for _, layer := range args {
					path, compressed, err := c.Resolve(layer)
					if err != nil {
						return err
					}

					from := "current format"
					if !compressed {
						if exists, _ := afero.Exists(fs, path); exists {
							from = "legacy format"
						} else {
							from = "no metadata file"
						}
					}

					if err := rewriter.Rewrite(layer); err != nil {
						return err
					}
					fmt.Printf("%s: rewritten (was %s)\n", layer, from)
				}

				return s.Flush()
			})
		},
	}
)
