package main

import (
	"caixa-imoveis/cmd/imoveis-cli/commands"
	"caixa-imoveis/lib/util/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext()
	defer cancel()
	commands.ExecuteContext(ctx)
}
