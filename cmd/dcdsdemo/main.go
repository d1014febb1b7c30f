// Copyright 2024 The DCDS Authors
// This file is part of DCDS.
//
// DCDS is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// DCDS is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with DCDS. If not, see <http://www.gnu.org/licenses/>.

// Command dcdsdemo registers each of internal/examples' data structures
// and drives a few of their operations, to exercise the dcds package's
// Register/CreateInstance/Call surface end to end outside of tests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	dcds "github.com/dcds-project/dcds"
	"github.com/dcds-project/dcds/internal/dcdsconfig"
	"github.com/dcds-project/dcds/internal/examples"
	"github.com/dcds-project/dcds/internal/value"
)

type lruFlags struct {
	capacity int32
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "dcdsdemo",
		Short: "Drive the bundled example data structures through the dcds public API",
	}

	rootCmd.AddCommand(counterCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(lruCmd())
	rootCmd.AddCommand(mapCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func counterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "counter",
		Short: "Register Counter (S1), write 42, read it back",
		RunE: func(_ *cobra.Command, _ []string) error {
			reg, err := dcds.Register(dcdsconfig.Default(), examples.Counter())
			if err != nil {
				return err
			}
			h, err := reg.CreateInstance()
			if err != nil {
				return err
			}
			if _, err := h.Call("write", value.I64(42)); err != nil {
				return err
			}
			v, err := h.Call("read")
			if err != nil {
				return err
			}
			fmt.Printf("%s counter_value=%d\n", h, v.AsI64())
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Register LinkedList (S2), push 1..3, pop them back off",
		RunE: func(_ *cobra.Command, _ []string) error {
			reg, err := dcds.Register(dcdsconfig.Default(), examples.LinkedList())
			if err != nil {
				return err
			}
			h, err := reg.CreateInstance()
			if err != nil {
				return err
			}
			for _, v := range []int64{1, 2, 3} {
				if _, err := h.Call("push_front", value.I64(v)); err != nil {
					return err
				}
			}
			for {
				v, err := h.Call("pop_back")
				if err != nil {
					return err
				}
				if v.AsI64() == -1 {
					fmt.Println("list empty")
					return nil
				}
				fmt.Printf("popped %d\n", v.AsI64())
			}
		},
	}
}

func lruCmd() *cobra.Command {
	flags := &lruFlags{}
	cmd := &cobra.Command{
		Use:   "lru",
		Short: "Register LRU (S3), insert capacity+1 entries, show the eviction",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLRU(flags)
		},
	}
	cmd.Flags().Int32VarP(&flags.capacity, "capacity", "c", 3, "cache capacity")
	return cmd
}

func runLRU(flags *lruFlags) error {
	reg, err := dcds.Register(dcdsconfig.Default(), examples.LRU())
	if err != nil {
		return err
	}
	h, err := reg.CreateInstance(value.I32(flags.capacity))
	if err != nil {
		return err
	}
	for i := int32(1); i <= flags.capacity+1; i++ {
		if _, err := h.Call("insert", value.I32(i), value.I32(i*10)); err != nil {
			return err
		}
	}
	ln, err := h.Call("length")
	if err != nil {
		return err
	}
	fmt.Printf("length=%d (capacity=%d)\n", ln.AsI32(), flags.capacity)
	has1, err := h.Call("contains", value.I32(1))
	if err != nil {
		return err
	}
	fmt.Printf("contains(1)=%v (expected evicted)\n", has1.AsBool())
	return nil
}

func mapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "Register IndexedMap (S4), insert a key, look it up through a holder",
		RunE: func(_ *cobra.Command, _ []string) error {
			reg, err := dcds.Register(dcdsconfig.Default(), examples.IndexedMap())
			if err != nil {
				return err
			}
			h, err := reg.CreateInstance()
			if err != nil {
				return err
			}
			if _, err := h.Call("insert", value.I32(5), value.I32(99)); err != nil {
				return err
			}
			holder, err := h.Call("make_holder")
			if err != nil {
				return err
			}
			found, err := h.Call("lookup", value.I32(5), holder)
			if err != nil {
				return err
			}
			fmt.Printf("lookup(5)=%v\n", found.AsBool())
			return nil
		},
	}
}
