//go:build windows

package webgpu

// WGSL compute shaders for the device kernels.
// Using string constants instead of embed for simplicity.

// workgroupSize is the default number of threads per workgroup.
const workgroupSize = 256

// fillShader sets data[offset .. offset+count) to value.
const fillShader = `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

struct Params {
    offset: u32,
    count: u32,
    value: f32,
}
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx < params.count) {
        data[params.offset + idx] = params.value;
    }
}
`

// adamShader applies one bias-corrected Adam step element-wise.
// Moments are written before the weight.
const adamShader = `
@group(0) @binding(0) var<storage, read_write> w: array<f32>;
@group(0) @binding(1) var<storage, read_write> g: array<f32>;
@group(0) @binding(2) var<storage, read_write> m: array<f32>;
@group(0) @binding(3) var<storage, read_write> v: array<f32>;

struct Params {
    size: u32,
    lr: f32,
    beta1: f32,
    beta2: f32,
    eps: f32,
    bc1: f32,
    bc2: f32,
}
@group(0) @binding(4) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) {
        return;
    }
    let gi = g[idx];
    let mi = params.beta1 * m[idx] + (1.0 - params.beta1) * gi;
    let vi = params.beta2 * v[idx] + (1.0 - params.beta2) * gi * gi;
    m[idx] = mi;
    v[idx] = vi;

    let m_hat = mi / params.bc1;
    let v_hat = vi / params.bc2;
    w[idx] = w[idx] - params.lr * m_hat / (sqrt(v_hat) + params.eps);
}
`
