package simdriver

import (
	"github.com/cockroachdb/errors"

	"github.com/andewx/scopvk/driver"
)

func (g *GPU) CreateShaderModule(code []byte) (driver.ShaderModule, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Wrapf(driver.ErrInitializationFailed, "shader code of %d bytes is not SPIR-V words", len(code))
	}
	return driver.ShaderModule(g.acquire(kindShader)), nil
}

func (g *GPU) DestroyShaderModule(m driver.ShaderModule) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(m), kindShader)
}

func (g *GPU) CreatePipelineLayout(info driver.PipelineLayoutInfo) (driver.PipelineLayout, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, l := range info.SetLayouts {
		g.mustLive(uint64(l), kindSetLayout)
	}
	for _, r := range info.PushConstants {
		if r.Offset+r.Size > g.opts.Limits.MaxPushConstantsSize {
			panic(errors.AssertionFailedf("simdriver: push constant range exceeds %d bytes", g.opts.Limits.MaxPushConstantsSize))
		}
	}
	h := driver.PipelineLayout(g.acquire(kindPipelineLayout))
	g.pipeLayouts[h] = driver.PipelineLayoutInfo{
		SetLayouts:    append([]driver.DescriptorSetLayout(nil), info.SetLayouts...),
		PushConstants: append([]driver.PushConstantRange(nil), info.PushConstants...),
	}
	return h, nil
}

func (g *GPU) DestroyPipelineLayout(l driver.PipelineLayout) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(l), kindPipelineLayout)
	delete(g.pipeLayouts, l)
}

func (g *GPU) CreateGraphicsPipeline(info driver.GraphicsPipelineInfo) (driver.Pipeline, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(info.Layout), kindPipelineLayout)
	g.mustLive(uint64(info.RenderPass), kindRenderPass)
	for _, s := range info.Stages {
		g.mustLive(uint64(s.Module), kindShader)
	}
	if g.opts.RejectPipelines {
		return 0, errors.Wrap(driver.ErrPipelineRejected, "simulated rejection")
	}
	h := driver.Pipeline(g.acquire(kindPipeline))
	g.pipelines[h] = info
	return h, nil
}

func (g *GPU) DestroyPipeline(p driver.Pipeline) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(p), kindPipeline)
	delete(g.pipelines, p)
}

//PipelineInfo returns the description a pipeline was created from.
func (g *GPU) PipelineInfo(p driver.Pipeline) driver.GraphicsPipelineInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(p), kindPipeline)
	return g.pipelines[p]
}

func (g *GPU) CreateRenderPass(info driver.RenderPassInfo) (driver.RenderPass, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if info.Depth != nil && !g.formatSupportedLocked(info.Depth.Format) {
		return 0, errors.Wrapf(driver.ErrFormatNotSupported, "depth attachment %s", info.Depth.Format)
	}
	return driver.RenderPass(g.acquire(kindRenderPass)), nil
}

func (g *GPU) DestroyRenderPass(rp driver.RenderPass) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(rp), kindRenderPass)
}

func (g *GPU) CreateFramebuffer(info driver.FramebufferInfo) (driver.Framebuffer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mustLive(uint64(info.RenderPass), kindRenderPass)
	for _, v := range info.Attachments {
		g.mustLive(uint64(v), kindImageView)
	}
	return driver.Framebuffer(g.acquire(kindFramebuffer)), nil
}

func (g *GPU) DestroyFramebuffer(fb driver.Framebuffer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.release(uint64(fb), kindFramebuffer)
}
