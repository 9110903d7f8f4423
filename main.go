package main

import (
	"os"

	"github.com/zhengshuai-xiao/VaultS/cmd"
	"github.com/zhengshuai-xiao/VaultS/internal"
)

var logger = internal.GetLogger("vaults_main")

func main() {
	if err := cmd.Main(os.Args); err != nil {
		logger.Fatal(err)
	}
}
