package renderer

import (
	"fmt"
	"strings"

	"ScrollStage/internal/logger"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"
)

// =============================================================
//
//	Shaders
//
// =============================================================
type Shader struct {
	name           string
	vertexSource   string
	fragmentSource string
	program        uint32
	isCompiled     bool
	uniforms       *UniformCache
}

func (shader *Shader) Compile() error {
	if shader.isCompiled {
		return nil
	}
	vertex, err := GenShader(shader.vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return fmt.Errorf("%s vertex shader: %w", shader.name, err)
	}
	fragment, err := GenShader(shader.fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vertex)
		return fmt.Errorf("%s fragment shader: %w", shader.name, err)
	}
	program, err := GenShaderProgram(vertex, fragment)
	if err != nil {
		return fmt.Errorf("%s program: %w", shader.name, err)
	}
	shader.program = program
	shader.uniforms = NewUniformCache(program)
	shader.isCompiled = true
	logger.Log.Debug("Shader compiled", zap.String("shader", shader.name), zap.Uint32("program", program))
	return nil
}

func (shader *Shader) Use() {
	gl.UseProgram(shader.program)
}

func (shader *Shader) Uniforms() *UniformCache {
	return shader.uniforms
}

func (shader *Shader) Delete() {
	if shader.isCompiled {
		gl.DeleteProgram(shader.program)
		shader.isCompiled = false
	}
}

func GenShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	cSources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, cSources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)

		logger.Log.Error("Failed to compile", zap.Uint32("shader type:", shaderType), zap.String("log", log))
		return 0, fmt.Errorf("compile: %s", strings.TrimRight(log, "\x00"))
	}
	return shader, nil
}

func GenShaderProgram(vertexShader, fragmentShader uint32) (uint32, error) {
	program := gl.CreateProgram()
	gl.AttachShader(program, vertexShader)
	gl.AttachShader(program, fragmentShader)
	gl.LinkProgram(program)

	gl.DetachShader(program, vertexShader)
	gl.DeleteShader(vertexShader)
	gl.DetachShader(program, fragmentShader)
	gl.DeleteShader(fragmentShader)

	var status int32
	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(program, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(program, logLength, nil, gl.Str(log))
		gl.DeleteProgram(program)

		logger.Log.Error("Failed to link program", zap.String("log", log))
		return 0, fmt.Errorf("link: %s", strings.TrimRight(log, "\x00"))
	}
	return program, nil
}

// Vertex layout shared by both passes, see scene.Mesh.Interleave.
const skinningChunk = `
layout(location = 0) in vec3 inPosition;
layout(location = 1) in vec3 inNormal;
layout(location = 2) in vec2 inTexCoord;
layout(location = 3) in vec4 inJoints;
layout(location = 4) in vec4 inWeights;

const int MAX_JOINTS = 128;

uniform mat4 model;
uniform bool skinned;
uniform mat4 jointMatrices[MAX_JOINTS];

// Joint matrices already carry the mesh's world transform.
mat4 worldMatrix() {
    if (!skinned) {
        return model;
    }
    return inWeights.x * jointMatrices[int(inJoints.x)] +
           inWeights.y * jointMatrices[int(inJoints.y)] +
           inWeights.z * jointMatrices[int(inJoints.z)] +
           inWeights.w * jointMatrices[int(inJoints.w)];
}
`

var depthVertexShaderSource = `#version 410 core
` + skinningChunk + `
uniform mat4 lightViewProjection;

void main() {
    gl_Position = lightViewProjection * worldMatrix() * vec4(inPosition, 1.0);
}
` + "\x00"

var depthFragmentShaderSource = `#version 410 core

void main() {
}
` + "\x00"

var vertexShaderSource = `#version 410 core
` + skinningChunk + `
uniform mat4 viewProjection;
uniform mat4 lightViewProjection;

out vec2 fragTexCoord;
out vec3 Normal;
out vec3 FragPos;
out vec4 FragPosLightSpace;

void main() {
    mat4 world = worldMatrix();
    vec4 worldPos = world * vec4(inPosition, 1.0);

    FragPos = worldPos.xyz;
    Normal = mat3(world) * inNormal;
    fragTexCoord = inTexCoord;
    FragPosLightSpace = lightViewProjection * worldPos;

    gl_Position = viewProjection * worldPos;
}
` + "\x00"

var fragmentShaderSource = `#version 410 core
in vec2 fragTexCoord;
in vec3 Normal;
in vec3 FragPos;
in vec4 FragPosLightSpace;

uniform sampler2D textureSampler;
uniform sampler2D shadowMap;
uniform bool hasTexture;
uniform vec4 baseColor;

uniform struct Light {
    vec3 direction;
    vec3 color;
    float intensity;
} light;
uniform vec3 ambientColor;

uniform bool castShadows;
uniform bool receiveShadow;
uniform float shadowBias;
uniform float exposure;

out vec4 FragColor;

float shadowFactor(vec3 n, vec3 l) {
    vec3 proj = FragPosLightSpace.xyz / FragPosLightSpace.w;
    proj = proj * 0.5 + 0.5;
    if (proj.z > 1.0 || proj.x < 0.0 || proj.x > 1.0 || proj.y < 0.0 || proj.y > 1.0) {
        return 1.0;
    }

    float lit = 0.0;
    vec2 texel = 1.0 / vec2(textureSize(shadowMap, 0));
    for (int x = -1; x <= 1; ++x) {
        for (int y = -1; y <= 1; ++y) {
            float depth = texture(shadowMap, proj.xy + vec2(x, y) * texel).r;
            lit += proj.z + shadowBias <= depth ? 1.0 : 0.0;
        }
    }
    return lit / 9.0;
}

vec3 acesFilmic(vec3 c) {
    c *= exposure / 0.6;
    mat3 inputMat = mat3(0.59719, 0.07600, 0.02840,
                         0.35458, 0.90834, 0.13383,
                         0.04823, 0.01566, 0.83777);
    mat3 outputMat = mat3( 1.60475, -0.10208, -0.00327,
                          -0.53108,  1.10813, -0.07276,
                          -0.07367, -0.00605,  1.07602);
    c = inputMat * c;
    vec3 a = c * (c + 0.0245786) - 0.000090537;
    vec3 b = c * (0.983729 * c + 0.4329510) + 0.238081;
    c = outputMat * (a / b);
    return clamp(c, 0.0, 1.0);
}

vec3 linearToSRGB(vec3 c) {
    vec3 low = c * 12.92;
    vec3 high = 1.055 * pow(c, vec3(1.0 / 2.4)) - 0.055;
    return mix(low, high, step(vec3(0.0031308), c));
}

void main() {
    vec4 albedo = baseColor;
    if (hasTexture) {
        albedo *= texture(textureSampler, fragTexCoord);
    }

    vec3 n = normalize(Normal);
    vec3 l = normalize(-light.direction);
    float diff = max(dot(n, l), 0.0);

    float shadow = 1.0;
    if (castShadows && receiveShadow && diff > 0.0) {
        shadow = shadowFactor(n, l);
    }

    vec3 direct = diff * shadow * light.color * light.intensity;
    vec3 color = albedo.rgb * (ambientColor + direct);

    FragColor = vec4(linearToSRGB(acesFilmic(color)), albedo.a);
}
` + "\x00"

func InitShader() Shader {
	return Shader{
		name:           "default",
		vertexSource:   vertexShaderSource,
		fragmentSource: fragmentShaderSource,
	}
}

func InitDepthShader() Shader {
	return Shader{
		name:           "depth",
		vertexSource:   depthVertexShaderSource,
		fragmentSource: depthFragmentShaderSource,
	}
}
