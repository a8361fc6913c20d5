package shared

import (
	"net/rpc"
)

// GeneratorRPCClient is the RPC client for generator plugins.
type GeneratorRPCClient struct {
	client *rpc.Client
}

// Name returns the generator name.
func (c *GeneratorRPCClient) Name() string {
	var resp string
	if err := c.client.Call("Plugin.Name", new(any), &resp); err != nil {
		return ""
	}
	return resp
}

// GenerateArgs are the arguments for the Generate RPC call.
type GenerateArgs struct {
	Prompt string
}

// GenerateReply is the reply for the Generate RPC call.
type GenerateReply struct {
	Text  string
	Error string
}

// Generate returns the plugin's answer for prompt.
func (c *GeneratorRPCClient) Generate(prompt string) (string, error) {
	var resp GenerateReply
	if err := c.client.Call("Plugin.Generate", &GenerateArgs{Prompt: prompt}, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &PluginError{Message: resp.Error}
	}
	return resp.Text, nil
}

// Close closes the generator.
func (c *GeneratorRPCClient) Close() error {
	var resp string
	if err := c.client.Call("Plugin.Close", new(any), &resp); err != nil {
		return err
	}
	if resp != "" {
		return &PluginError{Message: resp}
	}
	return nil
}

// GeneratorRPCServer is the RPC server for generator plugins.
type GeneratorRPCServer struct {
	Impl GeneratorProvider
}

func (s *GeneratorRPCServer) Name(args any, resp *string) error {
	*resp = s.Impl.Name()
	return nil
}

func (s *GeneratorRPCServer) Generate(args *GenerateArgs, resp *GenerateReply) error {
	text, err := s.Impl.Generate(args.Prompt)
	if err != nil {
		resp.Error = err.Error()
		return nil
	}
	resp.Text = text
	return nil
}

func (s *GeneratorRPCServer) Close(args any, resp *string) error {
	if err := s.Impl.Close(); err != nil {
		*resp = err.Error()
	}
	return nil
}
